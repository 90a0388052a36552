package trustpilot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"

	"review_harvester/internal/domain"
)

// RobotsGate fetches robots.txt once per host and tests page paths against
// the group for our user agent. An unreachable robots.txt allows everything.
type RobotsGate struct {
	hc     *http.Client
	agent  string
	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

func NewRobotsGate(hc *http.Client, agent string) *RobotsGate {
	return &RobotsGate{hc: hc, agent: agent, groups: map[string]*robotstxt.Group{}}
}

func (g *RobotsGate) Allow(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return err
	}
	group := g.group(ctx, u)
	if group == nil || group.Test(u.Path) {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrRobotsDisallowed, u.Path)
}

func (g *RobotsGate) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	host := u.Scheme + "://" + u.Host

	g.mu.Lock()
	defer g.mu.Unlock()
	if grp, ok := g.groups[host]; ok {
		return grp
	}

	var grp *robotstxt.Group
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err == nil {
		req.Header.Set("User-Agent", g.agent)
		var resp *http.Response
		if resp, err = g.hc.Do(req); err == nil {
			data, perr := robotstxt.FromResponse(resp)
			resp.Body.Close()
			if perr == nil {
				grp = data.FindGroup(g.agent)
			} else {
				err = perr
			}
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("host", u.Host).Msg("robots.txt unavailable, allowing all")
		if ctx.Err() != nil {
			// do not cache a verdict reached while shutting down
			return nil
		}
	}
	g.groups[host] = grp
	return grp
}
