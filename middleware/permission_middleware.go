package middleware

import (
	"net/http"

	"github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/services/audit"
	"github.com/fieldops/accessctl/utils"
	"go.uber.org/zap"
)

// forbiddenMessage is returned on every denial so no rule detail leaks
const forbiddenMessage = "You do not have permission to perform this action"

// DecisionAuditor records gate decisions
type DecisionAuditor interface {
	LogDecision(event audit.DecisionEvent) error
}

// PermissionGate decides every request against the caller's company rule set
type PermissionGate struct {
	evaluator policy.Evaluator
	resolver  *policy.Resolver
	auditor   DecisionAuditor
	logger    *zap.Logger
}

// NewPermissionGate creates a gate. auditor may be nil.
func NewPermissionGate(evaluator policy.Evaluator, resolver *policy.Resolver, auditor DecisionAuditor, logger *zap.Logger) *PermissionGate {
	if resolver == nil {
		resolver = policy.NewResolver(policy.DefaultAPIRoot)
	}
	return &PermissionGate{
		evaluator: evaluator,
		resolver:  resolver,
		auditor:   auditor,
		logger:    logger,
	}
}

// Action attaches an explicit action name to the routes it wraps
func Action(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithActionHint(r.Context(), name)))
		})
	}
}

// HasPermission evaluates the request. An error means the rule set could not
// be loaded, never that the request varied.
func (g *PermissionGate) HasPermission(r *http.Request) (bool, *policy.Decision, error) {
	req := g.evaluationRequest(r)
	decision, err := g.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		return false, nil, err
	}
	return decision.Allowed, decision, nil
}

// Require rejects requests the gate denies with 403 and store failures with 500
func (g *PermissionGate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		req := g.evaluationRequest(r)

		decision, err := g.evaluator.Evaluate(ctx, req)
		if err != nil {
			g.logger.Error("permission evaluation failed",
				zap.String("request_id", requestID),
				zap.String("action", req.Action),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		fields := decisionFields(requestID, req, decision)
		g.record(r, req, decision)

		if !decision.Allowed {
			g.logger.Info("access denied", fields...)
			_ = utils.WriteForbidden(w, forbiddenMessage)
			return
		}

		g.logger.Debug("access granted", fields...)
		next.ServeHTTP(w, r)
	})
}

func (g *PermissionGate) evaluationRequest(r *http.Request) *policy.EvaluationRequest {
	ctx := r.Context()
	profile := GetProfileFromContext(ctx)

	actor := policy.ActorFromProfile(profile)
	if actor.PrincipalID == "" {
		if claims := GetClaimsFromContext(ctx); claims != nil {
			actor.PrincipalID = claims.Subject
		}
	}

	sitec := GetSitecFromContext(ctx)
	if sitec == "" {
		sitec = ExtractSitec(r)
	}

	return &policy.EvaluationRequest{
		Actor:  actor,
		Action: g.resolver.Resolve(GetActionHint(ctx), r.URL.Path, r.Method),
		Attributes: policy.BuildContext(profile, policy.RequestInfo{
			SitecID: sitec,
			Method:  r.Method,
			Path:    r.URL.Path,
		}),
	}
}

// record forwards the decision to the auditor without blocking the request
func (g *PermissionGate) record(r *http.Request, req *policy.EvaluationRequest, decision *policy.Decision) {
	if g.auditor == nil {
		return
	}
	err := g.auditor.LogDecision(audit.DecisionEvent{
		Actor:     req.Actor,
		Decision:  decision,
		Method:    req.Attributes[policy.AttrMethod],
		Path:      req.Attributes[policy.AttrPath],
		SitecID:   req.Attributes[policy.AttrSitecID],
		RequestID: GetRequestIDFromContext(r.Context()),
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		g.logger.Warn("failed to record access decision", zap.Error(err))
	}
}

func decisionFields(requestID string, req *policy.EvaluationRequest, decision *policy.Decision) []zap.Field {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("action", req.Action),
		zap.String("principal_id", req.Actor.PrincipalID),
		zap.String("reason", string(decision.Reason)),
	}
	if req.Actor.CompanyID != nil {
		fields = append(fields, zap.String("company_id", req.Actor.CompanyID.String()))
	}
	if decision.PolicyID != nil {
		fields = append(fields, zap.String("policy_id", decision.PolicyID.String()))
	}
	return fields
}
