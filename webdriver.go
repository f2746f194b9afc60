package headless

import (
	"strings"

	"github.com/tebeka/selenium"
)

// webDriverClient adapts a remote WebDriver session to the Client
// interface. Paths passed to Open are resolved against the base URL fixed
// at connect time.
type webDriverClient struct {
	wd      selenium.WebDriver
	baseURL string
}

// newWebDriverClient is the stock ClientFactory. Connecting also starts the
// browser on the server side, so a server that is not yet fully up fails
// here and gets retried by the orchestrator.
func newWebDriverClient(hubAddr, browser, baseURL string) (Client, error) {
	caps := selenium.Capabilities{"browserName": browser}
	wd, err := selenium.NewRemote(caps, "http://"+hubAddr+"/wd/hub")
	if err != nil {
		return nil, err
	}
	return &webDriverClient{wd: wd, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (c *webDriverClient) Open(path string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.wd.Get(c.baseURL + path)
}

func (c *webDriverClient) Close() error {
	return c.wd.Quit()
}
