package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources aborts requests whose resource type is listed in kinds.
// The router stops when the page closes.
func blockResources(page *rod.Page, kinds []string) {
	block := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		block[strings.ToLower(k)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(block, h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

func shouldBlock(block map[string]bool, t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeImage:
		return block["images"]
	case proto.NetworkResourceTypeFont:
		return block["fonts"]
	case proto.NetworkResourceTypeMedia:
		return block["media"]
	case proto.NetworkResourceTypeStylesheet:
		return block["stylesheets"]
	}
	return block[strings.ToLower(string(t))]
}
