package llm

import "fmt"

// RoutingPolicy picks the provider client for a call given the attempt
// number (0 for the first try). Policies are pure over the provider list so
// routing stays decoupled from task state.
type RoutingPolicy func(attempt int, clients []*Client) *Client

// PrimaryWithFailover always uses the first provider, moving down the list
// on each retry and sticking with the last provider once exhausted.
func PrimaryWithFailover(attempt int, clients []*Client) *Client {
	if attempt >= len(clients) {
		return clients[len(clients)-1]
	}
	return clients[attempt]
}

// RoundRobinByAttempt cycles through the providers on each retry.
func RoundRobinByAttempt(attempt int, clients []*Client) *Client {
	return clients[attempt%len(clients)]
}

// Router selects a provider client per call from an ordered list.
type Router struct {
	clients []*Client
	policy  RoutingPolicy
}

// NewRouter creates a router over an ordered provider list. The policy
// defaults to PrimaryWithFailover.
func NewRouter(clients []*Client, policy RoutingPolicy) (*Router, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("router requires at least one provider client")
	}
	if policy == nil {
		policy = PrimaryWithFailover
	}
	return &Router{clients: clients, policy: policy}, nil
}

// Pick returns the client for the given attempt.
func (r *Router) Pick(attempt int) *Client {
	return r.policy(attempt, r.clients)
}

// Providers returns the ordered provider names, for diagnostics.
func (r *Router) Providers() []string {
	names := make([]string, len(r.clients))
	for i, c := range r.clients {
		names[i] = c.Provider()
	}
	return names
}
