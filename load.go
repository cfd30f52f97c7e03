package lettersync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jpalmerr/lettersync/internal/poller"
	"github.com/jpalmerr/lettersync/page"
)

// LoadPage fetches the HTML page at pageURL and parses it into a
// [page.MemoryPage] that can be handed to [New].
//
// The page path used for eligibility is taken from pageURL.
func LoadPage(ctx context.Context, pageURL string, timeout time.Duration) (*page.MemoryPage, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	client := poller.NewClient()
	defer client.Close()

	resp := client.Fetch(ctx, http.MethodGet, pageURL, map[string]string{"Accept": "text/html"}, nil, timeout)
	if resp.Error != nil {
		return nil, fmt.Errorf("failed to load page: %w", resp.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to load page: unexpected status code %d", resp.StatusCode)
	}

	return page.ParseHTML(bytes.NewReader(resp.Body), u.Path)
}
