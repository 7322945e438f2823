package probe

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	pathWellKnownNodeInfo = "/.well-known/nodeinfo"
	nodeInfoV2Marker      = "nodeinfo/2."
)

type nodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type nodeInfoDiscovery struct {
	Links []nodeInfoLink `json:"links"`
}

// NodeInfoCheck follows the two-hop NodeInfo discovery: the well-known document
// lists schema links, the first 2.x link is fetched. Federation metadata is
// optional, so every failure here is a warning.
type NodeInfoCheck struct {
	HTTP    *HTTPChecker
	Timeout time.Duration
}

func (c *NodeInfoCheck) Check(ctx context.Context, base string) Result {
	resp, err := c.HTTP.Get(ctx, base+pathWellKnownNodeInfo, c.Timeout)
	if err != nil {
		return warnf("%s", describe(err))
	}
	if resp.StatusCode != http.StatusOK {
		return warnf("NodeInfo not available")
	}

	var disco nodeInfoDiscovery
	if err := resp.DecodeJSON(&disco); err != nil {
		return warnf("nodeinfo discovery: %v", err)
	}
	href, ok := selectNodeInfoLink(disco.Links)
	if !ok {
		return warnf("NodeInfo link not found")
	}

	resp, err = c.HTTP.Get(ctx, href, c.Timeout)
	if err != nil {
		return warnf("%s", describe(err))
	}
	if resp.StatusCode != http.StatusOK {
		res := warnf("NodeInfo not reachable")
		res.StatusCode = resp.StatusCode
		return res
	}

	if !resp.ValidJSON() {
		return warnf("nodeinfo: invalid JSON body")
	}
	res := Result{Status: StatusOK, StatusCode: resp.StatusCode}
	var doc NodeInfo
	if resp.DecodeJSON(&doc) == nil {
		res.NodeInfo = &doc
	}
	return res
}

// selectNodeInfoLink returns the first href naming a 2.x schema. No attempt
// is made to prefer 2.1 over 2.0.
func selectNodeInfoLink(links []nodeInfoLink) (string, bool) {
	for _, l := range links {
		if strings.Contains(l.Href, nodeInfoV2Marker) {
			return l.Href, true
		}
	}
	return "", false
}
