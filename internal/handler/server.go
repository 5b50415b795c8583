// Package handler implements the HTTP handlers for the trip planner API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (group.go, schedule.go, planning.go, etc.) but share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/grid"
	"github.com/pkordes/tripplanner/internal/pool"
	"github.com/pkordes/tripplanner/internal/service"
	"github.com/pkordes/tripplanner/internal/transfer"
)

// GroupServicer defines the group and must-visit operations the handlers
// depend on. Defining the interface here (in the consumer package) lets
// handler tests inject a mock without touching the database or service layer.
type GroupServicer interface {
	Create(ctx context.Context, g domain.Group) (domain.Group, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Group, error)
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Group, int64, error)
	SetMustVisit(ctx context.Context, id uuid.UUID, mv service.MustVisit) (domain.Group, error)
	CreatePlanTemplate(ctx context.Context, t domain.PlanTemplate) (domain.PlanTemplate, error)
}

// LocationServicer defines the location operations the handlers depend on.
type LocationServicer interface {
	Create(ctx context.Context, l domain.Location) (domain.Location, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Location, error)
	List(ctx context.Context) ([]domain.Location, error)
}

// LogisticsServicer defines the logistics and custom template operations.
type LogisticsServicer interface {
	SetDay(ctx context.Context, day domain.LogisticsDay) (domain.LogisticsDay, error)
	ListDays(ctx context.Context, groupID uuid.UUID) ([]domain.LogisticsDay, error)
	AddTemplate(ctx context.Context, t domain.CustomTemplate) (domain.CustomTemplate, error)
	ListTemplates(ctx context.Context, groupID uuid.UUID) ([]domain.CustomTemplate, error)
	DeleteTemplate(ctx context.Context, groupID, id uuid.UUID) error
}

// PoolServicer derives a group's candidate pool.
type PoolServicer interface {
	Get(ctx context.Context, groupID uuid.UUID) (pool.Pool, error)
}

// ScheduleServicer defines the calendar operations the handlers depend on.
type ScheduleServicer interface {
	List(ctx context.Context, groupID uuid.UUID) ([]domain.Activity, error)
	Assign(ctx context.Context, groupID uuid.UUID, candidateID string, date time.Time, start string) (service.Mutation, error)
	CreateCustom(ctx context.Context, groupID uuid.UUID, in service.CustomActivity) (service.Mutation, error)
	Move(ctx context.Context, groupID, activityID uuid.UUID, date time.Time, start string) (service.Mutation, error)
	Resize(ctx context.Context, groupID, activityID uuid.UUID, end string) (service.Mutation, error)
	Delete(ctx context.Context, groupID, activityID uuid.UUID) (int64, error)
	SaveBatch(ctx context.Context, groupID uuid.UUID, revision int64, acts []domain.Activity) (service.SaveResult, error)
	Overlaps(ctx context.Context, groupID uuid.UUID) ([]grid.Cluster, error)
	Check(ctx context.Context, req service.CheckRequest) ([]domain.Conflict, error)
}

// TransferServicer defines the planning exchange operations.
type TransferServicer interface {
	Export(ctx context.Context, groupIDs []uuid.UUID, start, end time.Time) (transfer.Payload, error)
	Import(ctx context.Context, req service.ImportRequest) (service.ImportResult, error)
	Rollback(ctx context.Context, token string) (service.RollbackResult, error)
}

// Services bundles every dependency of Server. Nil members are allowed in
// tests that do not exercise the matching routes.
type Services struct {
	Groups    GroupServicer
	Locations LocationServicer
	Logistics LogisticsServicer
	Pools     PoolServicer
	Schedule  ScheduleServicer
	Transfer  TransferServicer
}

// Server holds the services behind every endpoint.
type Server struct {
	groups    GroupServicer
	locations LocationServicer
	logistics LogisticsServicer
	pools     PoolServicer
	schedule  ScheduleServicer
	transfer  TransferServicer

	validate *validator.Validate
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(svcs Services, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		groups:    svcs.Groups,
		locations: svcs.Locations,
		logistics: svcs.Logistics,
		pools:     svcs.Pools,
		schedule:  svcs.Schedule,
		transfer:  svcs.Transfer,
		validate:  NewValidator(),
		log:       log,
	}
}

// Routes mounts every endpoint on r. Wire it in main.go after the
// middleware stack so request ids and logging cover all routes.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", s.getHealth)
	r.Get("/openapi.yaml", s.getOpenAPI)

	r.Route("/groups", func(r chi.Router) {
		r.Post("/", s.createGroup)
		r.Get("/", s.listGroups)
		r.Route("/{groupId}", func(r chi.Router) {
			r.Get("/", s.getGroup)
			r.Put("/must-visit", s.setMustVisit)

			r.Get("/logistics", s.listLogistics)
			r.Put("/logistics/{date}", s.setLogisticsDay)
			r.Get("/templates", s.listTemplates)
			r.Post("/templates", s.addTemplate)
			r.Delete("/templates/{templateId}", s.deleteTemplate)

			r.Get("/pool", s.getPool)

			r.Get("/activities", s.listActivities)
			r.Post("/activities", s.createCustomActivity)
			r.Post("/activities/assign", s.assignActivity)
			r.Patch("/activities/{activityId}/move", s.moveActivity)
			r.Patch("/activities/{activityId}/resize", s.resizeActivity)
			r.Delete("/activities/{activityId}", s.deleteActivity)
			r.Put("/schedule", s.saveSchedule)
			r.Get("/overlaps", s.listOverlaps)
		})
	})

	r.Post("/plan-templates", s.createPlanTemplate)

	r.Route("/locations", func(r chi.Router) {
		r.Post("/", s.createLocation)
		r.Get("/", s.listLocations)
		r.Get("/{locationId}", s.getLocation)
	})

	r.Post("/conflicts/check", s.checkConflicts)

	r.Route("/planning", func(r chi.Router) {
		r.Post("/export", s.exportPlanning)
		r.Post("/import", s.importPlanning)
		r.Post("/rollback", s.rollbackPlanning)
	})
}
