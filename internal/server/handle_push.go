package server

import (
	"net/http"

	"github.com/playperu/tabletop/internal/tabletop"
)

type SubscribeRequest struct {
	Endpoint string            `json:"endpoint" validate:"required,url,max=2048" required:"true" format:"uri"`
	Keys     tabletop.PushKeys `json:"keys"`
}

type SubscriptionPath struct {
	SubscriptionID string `path:"subscriptionId" json:"-"`
}

func (a *api) subscribePush(r *http.Request, in *SubscribeRequest) (tabletop.PushSubscription, error) {
	return services(r).Notifications.Subscribe(r.Context(), caller(r), in.Endpoint, in.Keys)
}

func subscriptionLocation(s tabletop.PushSubscription) string {
	return "/v1/push/subscriptions/" + s.ID
}

func (a *api) listPush(r *http.Request, _ *noInput) ([]tabletop.PushSubscription, error) {
	return services(r).Notifications.Subscriptions(r.Context(), caller(r))
}

func (a *api) unsubscribePush(r *http.Request, in *SubscriptionPath) (noContent, error) {
	return noContent{}, services(r).Notifications.Unsubscribe(r.Context(), in.SubscriptionID, caller(r))
}
