package handlers

import (
	"feedgraph/services"
)

var (
	engine        *services.FeedEngine
	socialService *services.SocialService
	userService   = services.NewUserService()
	counters      = services.NewCounterService()
)

// Init wires the handlers to the feed engine built in main.
func Init(e *services.FeedEngine) {
	engine = e
	socialService = services.NewSocialService(e)
}
