package service

import (
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/policy"
)

// authorize consults the policy and records the decision.
// A denial is returned as domain.ErrPermissionDenied.
func authorize(m *metrics.Metrics, p *domain.Principal, action policy.Action, res policy.Resource) error {
	allowed := policy.CanPerform(p, action, res)
	m.RecordDecision(action.String(), allowed)
	if !allowed {
		return domain.ErrPermissionDenied
	}
	return nil
}
