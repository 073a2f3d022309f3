// Package handlers implements the inbound HTTP surface for event
// submission. Every endpoint walks the same stages: authenticate the
// project key, reject duplicates and throttled projects, resolve the client
// address, normalize the payload, and hand the canonical event to the
// queue. A success response is only written after the queue has durably
// accepted every event.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/crashgate-systems/crashgate/common/httputil"
	"github.com/crashgate-systems/crashgate/common/logging"
	"github.com/crashgate-systems/crashgate/internal/clientaddr"
	"github.com/crashgate-systems/crashgate/internal/dedupe"
	"github.com/crashgate-systems/crashgate/internal/dispatch"
	"github.com/crashgate-systems/crashgate/internal/envelope"
	"github.com/crashgate-systems/crashgate/internal/event"
	"github.com/crashgate-systems/crashgate/internal/metrics"
	"github.com/crashgate-systems/crashgate/internal/normalizer"
	"github.com/crashgate-systems/crashgate/internal/projects"
	"github.com/crashgate-systems/crashgate/internal/throttle"
)

// Options tunes per-request behavior of the ingest handler.
type Options struct {
	MaxEventSize     int64
	MaxEnvelopeItems int
	ThrottleEnabled  bool
	ExposeTaskID     bool
}

type IngestHandler struct {
	auth     projects.Authenticator
	blocks   *projects.BlockCache
	dedupe   dedupe.Store
	resolver *clientaddr.Resolver
	queue    dispatch.EnqueuePort
	limiter  throttle.Limiter
	opts     Options
	logger   *logging.Logger
}

func NewIngestHandler(
	auth projects.Authenticator,
	blocks *projects.BlockCache,
	dedupeStore dedupe.Store,
	resolver *clientaddr.Resolver,
	queue dispatch.EnqueuePort,
	limiter throttle.Limiter,
	opts Options,
	logger *logging.Logger,
) *IngestHandler {
	if limiter == nil {
		limiter = &throttle.NoOpLimiter{}
	}
	return &IngestHandler{
		auth:     auth,
		blocks:   blocks,
		dedupe:   dedupeStore,
		resolver: resolver,
		queue:    queue,
		limiter:  limiter,
		opts:     opts,
		logger:   logger,
	}
}

type storeResponse struct {
	EventID string `json:"event_id"`
	TaskID  string `json:"task_id,omitempty"`
}

type envelopeResponse struct {
	ID string `json:"id,omitempty"`
}

// HandleStore accepts a single JSON event on the store endpoint.
func (h *IngestHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, auth, dsnKey, ok := h.authenticate(w, r, "store")
	if !ok {
		return
	}
	if !h.checkThrottle(w, ctx, projectID, auth, dsnKey, "store") {
		return
	}

	body, ok := h.readBody(w, r, "store")
	if !ok {
		return
	}

	ev, kind, err := normalizer.NormalizeStore(body)
	if err != nil {
		h.rejectSchema(w, ctx, err, "store")
		return
	}

	eventID, ok := h.claimEventID(w, ctx, projectID, ev.EventID, "store")
	if !ok {
		return
	}

	*ev = ev.WithClientIP(h.clientIP(r, auth))

	ie, err := event.BuildInterchange(projectID, auth.OrganizationID, kind, eventID, ev)
	if err != nil {
		h.logger.ErrorContext(ctx, "interchange build failed", logging.Error(err), logging.ProjectID(projectID))
		httputil.WriteDetail(w, http.StatusBadRequest, "Invalid event payload")
		metrics.EventsTotal.WithLabelValues("store", "rejected").Inc()
		return
	}

	taskID, ok := h.enqueue(w, ctx, ie, "store")
	if !ok {
		return
	}

	resp := storeResponse{EventID: ie.EventID}
	if h.opts.ExposeTaskID {
		resp.TaskID = taskID
	}
	metrics.EventsTotal.WithLabelValues("store", "accepted").Inc()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleEnvelope accepts a multi-item envelope submission. Unsupported item
// types are filtered silently; supported items that fail to decode are
// dropped with a warning. Order of accepted items is preserved all the way
// to the queue.
func (h *IngestHandler) HandleEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, auth, dsnKey, ok := h.authenticate(w, r, "envelope")
	if !ok {
		return
	}
	if !h.checkThrottle(w, ctx, projectID, auth, dsnKey, "envelope") {
		return
	}

	env, ok := h.readEnvelope(w, r)
	if !ok {
		return
	}

	clientIP := h.clientIP(r, auth)
	headerIDUsed := false

	accepted := 0
	for _, item := range env.Items {
		if accepted >= h.opts.MaxEnvelopeItems {
			metrics.DroppedItems.WithLabelValues(item.Header.Type).Inc()
			continue
		}

		var (
			ie  *event.InterchangeIssueEvent
			err error
		)
		switch item.Header.Type {
		case envelope.ItemTypeEvent:
			var ev *event.IssueEvent
			var kind event.Kind
			ev, kind, err = normalizer.NormalizeEnvelopeEvent(item.Payload)
			if err == nil {
				eventID := ev.EventID
				if eventID == "" && !headerIDUsed {
					eventID = env.Header.EventID
					headerIDUsed = true
				}
				*ev = ev.WithClientIP(clientIP)
				ie, err = event.BuildInterchange(projectID, auth.OrganizationID, kind, eventID, ev)
			}
		case envelope.ItemTypeTransaction:
			var tx *event.TransactionEvent
			tx, err = normalizer.NormalizeTransaction(item.Payload)
			if err == nil {
				eventID := tx.EventID
				if eventID == "" && !headerIDUsed {
					eventID = env.Header.EventID
					headerIDUsed = true
				}
				*tx = tx.WithClientIP(clientIP)
				ie, err = event.BuildInterchange(projectID, auth.OrganizationID, event.KindTransaction, eventID, tx)
			}
		default:
			metrics.DroppedItems.WithLabelValues(item.Header.Type).Inc()
			continue
		}

		if err != nil {
			h.logger.WarnContext(ctx, "envelope item dropped",
				logging.Error(err), logging.ProjectID(projectID), logging.ItemType(item.Header.Type))
			metrics.DroppedItems.WithLabelValues(item.Header.Type).Inc()
			continue
		}

		if _, ok := h.enqueue(w, ctx, ie, "envelope"); !ok {
			return
		}
		accepted++
	}

	metrics.EventsTotal.WithLabelValues("envelope", "accepted").Inc()

	// The echoed id is always the undashed hex form.
	respID := ""
	if env.Header.EventID != "" {
		if id, err := event.CanonicalID(env.Header.EventID); err == nil {
			respID = id
		}
	}
	httputil.WriteJSON(w, http.StatusOK, envelopeResponse{ID: respID})
}

// HandleSecurity accepts browser-native security reports (CSP violations).
func (h *IngestHandler) HandleSecurity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, auth, dsnKey, ok := h.authenticate(w, r, "security")
	if !ok {
		return
	}
	if !h.checkThrottle(w, ctx, projectID, auth, dsnKey, "security") {
		return
	}

	body, ok := h.readBody(w, r, "security")
	if !ok {
		return
	}

	ev, err := normalizer.NormalizeSecurity(body)
	if err != nil {
		h.rejectSchema(w, ctx, err, "security")
		return
	}

	*ev = ev.WithClientIP(h.clientIP(r, auth))

	ie, err := event.BuildInterchange(projectID, auth.OrganizationID, event.KindCSP, "", ev)
	if err != nil {
		httputil.WriteDetail(w, http.StatusBadRequest, "Invalid security report")
		metrics.EventsTotal.WithLabelValues("security", "rejected").Inc()
		return
	}

	if _, ok := h.enqueue(w, ctx, ie, "security"); !ok {
		return
	}

	metrics.EventsTotal.WithLabelValues("security", "accepted").Inc()
	w.WriteHeader(http.StatusCreated)
}

func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports whether the dedup store is reachable. The queue connection
// reconnects on its own and is not gated here.
func (h *IngestHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if pinger, ok := h.dedupe.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// authenticate resolves the project id and DSN key, consulting the block
// cache before the project store. On failure the response has been written
// and ok is false.
func (h *IngestHandler) authenticate(w http.ResponseWriter, r *http.Request, endpoint string) (int64, *projects.ProjectAuth, string, bool) {
	ctx := r.Context()

	projectID, err := strconv.ParseInt(r.PathValue("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		httputil.WriteDetail(w, http.StatusNotFound, "Invalid project id")
		return 0, nil, "", false
	}

	dsnKey, err := projects.KeyFromRequest(r)
	if err != nil {
		httputil.WriteDetail(w, http.StatusUnauthorized, "Invalid or missing DSN public key")
		metrics.EventsTotal.WithLabelValues(endpoint, "unauthorized").Inc()
		return 0, nil, "", false
	}

	if h.blocks != nil {
		if err := h.blocks.Check(ctx, projectID, dsnKey); err != nil {
			h.writeRejection(w, ctx, err, endpoint)
			return 0, nil, "", false
		}
	}

	auth, err := h.auth.Authenticate(ctx, projectID, dsnKey)
	if err != nil {
		if errors.Is(err, projects.ErrInvalidKey) {
			if h.blocks != nil {
				h.blocks.BlockInvalid(ctx, projectID, dsnKey)
			}
			httputil.WriteDetail(w, http.StatusUnauthorized, "Invalid or missing DSN public key")
			metrics.EventsTotal.WithLabelValues(endpoint, "unauthorized").Inc()
			return 0, nil, "", false
		}
		h.logger.ErrorContext(ctx, "project auth unavailable", logging.Error(err), logging.ProjectID(projectID))
		httputil.WriteDetail(w, http.StatusServiceUnavailable, "Service unavailable")
		return 0, nil, "", false
	}

	return projectID, auth, dsnKey, true
}

// checkThrottle applies the per-project request rate limit and the
// probabilistic project throttle, recording throttle decisions in the block
// cache so follow-up requests short-circuit.
func (h *IngestHandler) checkThrottle(w http.ResponseWriter, ctx context.Context, projectID int64, auth *projects.ProjectAuth, dsnKey, endpoint string) bool {
	if !h.opts.ThrottleEnabled {
		return true
	}

	allowed, err := h.limiter.Allow(ctx, strconv.FormatInt(projectID, 10))
	if err != nil {
		// Rate limiting fails open; the dedup store is the availability gate.
		h.logger.WarnContext(ctx, "rate limiter unavailable", logging.Error(err), logging.ProjectID(projectID))
	} else if !allowed {
		metrics.ThrottledRequests.Inc()
		w.Header().Set("Retry-After", "60")
		httputil.WriteDetail(w, http.StatusTooManyRequests, "Too many requests")
		return false
	}

	rate := auth.ThrottleRate()
	if !throttle.ShouldThrottle(rate) {
		return true
	}

	retryAfter := throttle.RetryAfter(rate)
	if h.blocks != nil {
		h.blocks.BlockThrottled(ctx, projectID, dsnKey, retryAfter)
	}
	h.writeRejection(w, ctx, &projects.ThrottledError{RetryAfter: retryAfter}, endpoint)
	return false
}

// writeRejection maps cached or fresh auth rejections to responses.
func (h *IngestHandler) writeRejection(w http.ResponseWriter, ctx context.Context, err error, endpoint string) {
	var throttled *projects.ThrottledError
	if errors.As(err, &throttled) {
		metrics.ThrottledRequests.Inc()
		w.Header().Set("Retry-After", strconv.Itoa(throttled.RetryAfter))
		httputil.WriteDetail(w, http.StatusTooManyRequests, "Event rejected due to throttling")
		return
	}
	httputil.WriteDetail(w, http.StatusUnauthorized, "Invalid or missing DSN public key")
	metrics.EventsTotal.WithLabelValues(endpoint, "unauthorized").Inc()
}

func (h *IngestHandler) readBody(w http.ResponseWriter, r *http.Request, endpoint string) ([]byte, bool) {
	body, err := httputil.ReadBody(r, h.opts.MaxEventSize)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		} else {
			httputil.WriteDetail(w, http.StatusBadRequest, "Unreadable request body")
		}
		metrics.EventsTotal.WithLabelValues(endpoint, "rejected").Inc()
		return nil, false
	}
	metrics.EventBytesTotal.Add(float64(len(body)))
	return body, true
}

func (h *IngestHandler) readEnvelope(w http.ResponseWriter, r *http.Request) (*envelope.Envelope, bool) {
	body, ok := h.readBody(w, r, "envelope")
	if !ok {
		return nil, false
	}

	env, err := envelope.Parse(bytes.NewReader(body), h.opts.MaxEventSize)
	if err != nil {
		switch {
		case errors.Is(err, envelope.ErrItemTooLarge):
			httputil.WriteDetail(w, http.StatusRequestEntityTooLarge, "Envelope item too large")
		default:
			httputil.WriteDetail(w, http.StatusBadRequest, "Malformed envelope")
		}
		metrics.EventsTotal.WithLabelValues("envelope", "rejected").Inc()
		return nil, false
	}
	return env, true
}

// claimEventID canonicalizes or generates the event id and claims it in the
// dedup store. A duplicate or an unreachable store rejects the request;
// silently accepting events the pipeline may have already seen is worse
// than failing loudly.
func (h *IngestHandler) claimEventID(w http.ResponseWriter, ctx context.Context, projectID int64, rawID, endpoint string) (string, bool) {
	eventID := event.NewID()
	if rawID != "" {
		canonical, err := event.CanonicalID(rawID)
		if err != nil {
			httputil.WriteDetail(w, http.StatusBadRequest, "Invalid event id")
			metrics.EventsTotal.WithLabelValues(endpoint, "rejected").Inc()
			return "", false
		}
		eventID = canonical
	}

	claimed, err := h.dedupe.TryClaim(ctx, strconv.FormatInt(projectID, 10)+":"+eventID)
	if err != nil {
		metrics.DedupeErrors.Inc()
		h.logger.ErrorContext(ctx, "dedupe store unavailable", logging.Error(err), logging.ProjectID(projectID))
		httputil.WriteDetail(w, http.StatusServiceUnavailable, "Service unavailable")
		return "", false
	}
	if !claimed {
		metrics.DuplicateEvents.Inc()
		h.logger.InfoContext(ctx, "duplicate event rejected", logging.ProjectID(projectID), logging.EventID(eventID))
		httputil.WriteDetail(w, http.StatusBadRequest, "An event with the same ID already exists")
		metrics.EventsTotal.WithLabelValues(endpoint, "duplicate").Inc()
		return "", false
	}

	return eventID, true
}

// clientIP resolves the submitting client's address for the event. A
// non-routable source yields "" so private addresses never reach the
// pipeline; scrub-flagged projects get anonymized addresses.
func (h *IngestHandler) clientIP(r *http.Request, auth *projects.ProjectAuth) string {
	addr, routable := h.resolver.Resolve(r)
	if !routable {
		return ""
	}
	if auth.ShouldScrubIPAddresses() {
		addr = clientaddr.Anonymize(addr)
	}
	if !addr.IsValid() {
		return ""
	}
	return addr.String()
}

// enqueue hands the event to the queue. The request context is detached so
// a client disconnect after submission cannot lose an event the server
// already committed to.
func (h *IngestHandler) enqueue(w http.ResponseWriter, ctx context.Context, ie *event.InterchangeIssueEvent, endpoint string) (string, bool) {
	handle, err := h.queue.Enqueue(context.WithoutCancel(ctx), ie)
	if err != nil {
		h.logger.ErrorContext(ctx, "enqueue failed",
			logging.Error(err), logging.ProjectID(ie.ProjectID), logging.EventID(ie.EventID))
		httputil.WriteDetail(w, http.StatusServiceUnavailable, "Event queue unavailable")
		metrics.EventsTotal.WithLabelValues(endpoint, "failed").Inc()
		return "", false
	}
	h.logger.DebugContext(ctx, "event enqueued",
		logging.ProjectID(ie.ProjectID), logging.EventID(ie.EventID), logging.TaskID(string(handle)))
	return string(handle), true
}

// rejectSchema writes the client-error response for malformed payloads.
func (h *IngestHandler) rejectSchema(w http.ResponseWriter, ctx context.Context, err error, endpoint string) {
	var schemaErr *normalizer.SchemaError
	if errors.As(err, &schemaErr) {
		httputil.WriteDetail(w, http.StatusBadRequest, schemaErr.Reason)
	} else {
		httputil.WriteDetail(w, http.StatusBadRequest, "Invalid payload")
	}
	metrics.EventsTotal.WithLabelValues(endpoint, "rejected").Inc()
	h.logger.DebugContext(ctx, "payload rejected", logging.Error(err), logging.Endpoint(endpoint))
}
