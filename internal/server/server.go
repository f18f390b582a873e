// Package server is the Connector Façade (C7): chi-based HTTP endpoints
// wiring the Schema Projector, SQL Generator and Query Orchestrator behind
// the NDC wire protocol. Grounded on the teacher's chi/cors/render/httplog
// stack (internal/server/web.go used chi+chi/middleware; cors/render/
// httplog are teacher go.mod dependencies with no other SPEC_FULL home,
// wired in here for the endpoints that actually need them) and on
// cmd/root_test.go's server.ServerConfig shape.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/trace"

	"github.com/hasura/ndc-embedded/internal/engine"
	"github.com/hasura/ndc-embedded/internal/log"
	"github.com/hasura/ndc-embedded/internal/metadata"
	"github.com/hasura/ndc-embedded/internal/models"
	"github.com/hasura/ndc-embedded/internal/orchestrator"
	"github.com/hasura/ndc-embedded/internal/querysql"
	"github.com/hasura/ndc-embedded/internal/schema"
	"github.com/hasura/ndc-embedded/internal/util"
)

// ServerConfig mirrors the CLI flags the serve subcommand accepts, grounded
// on the teacher's server.ServerConfig as exercised by cmd/root_test.go.
type ServerConfig struct {
	Address              string
	Port                 int
	LoggingFormat        string
	LogLevel             string
	TelemetryServiceName string
	Version              string
	Dir                  string
}

// Deps wires the connector's state into the façade: the active metadata
// catalogue, scalar registry, declared relationships, the engine singleton,
// and the toggles for §4.3/§4.5's configurable behaviors.
type Deps struct {
	Tables             map[string]metadata.TableMetadata
	Relationships      map[string]models.Relationship
	ScalarTypes        map[string]models.ScalarType
	Engine             *engine.Handle
	QueryConfig        querysql.Config
	OrchestratorConfig orchestrator.Config
	Logger             log.Logger
}

// NewRouter assembles the chi router serving capabilities/schema/query/
// query-explain.
func NewRouter(deps *Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httplog.RequestLogger(httplog.NewLogger("connector", httplog.Options{JSON: true})))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	h := &handler{deps: deps}
	r.Get("/capabilities", h.capabilities)
	r.Get("/schema", h.schema)
	r.Post("/query", h.query)
	r.Post("/query/explain", h.explain)
	return r
}

type handler struct {
	deps *Deps
}

func (h *handler) capabilities(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, models.CapabilitiesResponse{
		Version: "0.1.6",
		Capabilities: models.Capabilities{
			Query: models.QueryCapabilities{},
		},
	})
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) {
	objectTypes, collections, err := schema.Project(h.deps.Tables, h.deps.ScalarTypes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, models.SchemaResponse{
		ScalarTypes: h.deps.ScalarTypes,
		ObjectTypes: objectTypes,
		Collections: collections,
	})
}

func (h *handler) query(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(w, r, false)
}

func (h *handler) explain(w http.ResponseWriter, r *http.Request) {
	h.handleQuery(w, r, true)
}

func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request, explain bool) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, util.NewNDCError(util.CategoryDecodeError, "malformed query request", err))
		return
	}

	relationships := h.deps.Relationships
	if len(req.CollectionRelationships) > 0 {
		relationships = mergeRelationships(h.deps.Relationships, req.CollectionRelationships)
	}

	plan, err := querysql.Generate(h.deps.QueryConfig, h.deps.Tables, relationships, req.Collection, req.Query, req.Variables)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan.IsExplain = explain

	traceID, spanID := traceIDs(r.Context())
	rowSets, err := orchestrator.Execute(r.Context(), h.deps.Engine, h.deps.OrchestratorConfig, plan, traceID, spanID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, models.QueryResponse(rowSets))
}

// mergeRelationships decodes the request-scoped relationships map (raw JSON
// values keyed by name, per the wire protocol) over the declared set,
// request values taking precedence.
func mergeRelationships(base map[string]models.Relationship, raw map[string]any) map[string]models.Relationship {
	out := make(map[string]models.Relationship, len(base)+len(raw))
	for k, v := range base {
		out[k] = v
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return out
	}
	var decoded map[string]models.Relationship
	if json.Unmarshal(data, &decoded) == nil {
		for k, v := range decoded {
			out[k] = v
		}
	}
	return out
}

func traceIDs(ctx context.Context) (string, string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

// writeError renders the NDC error envelope {"message", "details"} with the
// status code the error's category maps to (§7).
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ndc, ok := err.(*util.NDCError)
	if !ok {
		ndc = util.NewNDCError(util.CategoryEngineError, err.Error(), err)
	}
	render.Status(r, ndc.HTTPStatus())
	render.JSON(w, r, map[string]any{
		"message": ndc.Msg,
		"details": ndc.Details,
	})
}

// Shutdown gives in-flight requests up to 5s to complete, matching the
// teacher's graceful-shutdown convention for the serve command.
func Shutdown(ctx context.Context, srv *http.Server) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
