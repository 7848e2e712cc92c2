package httpgin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/eventix/eventix/internal/domain"
	"github.com/eventix/eventix/internal/realtime"
	redisrepo "github.com/eventix/eventix/internal/repository/redis"
	"github.com/eventix/eventix/internal/service/admin"
	"github.com/eventix/eventix/internal/service/booking"
	"github.com/eventix/eventix/internal/service/catalog"
)

type CatalogService interface {
	List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
}

type BookingService interface {
	Reserve(ctx context.Context, in booking.ReserveInput, rlKey string) (*domain.BookingWithEvent, error)
	Cancel(ctx context.Context, bookingID int64) error
	GetByCode(ctx context.Context, code string) (*domain.BookingWithEvent, error)
	ListAll(ctx context.Context) ([]domain.BookingWithEvent, error)
	ListByEvent(ctx context.Context, eventID int64) ([]domain.Booking, error)
}

type AdminService interface {
	CreateEvent(ctx context.Context, in admin.CreateEventInput) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id int64, in admin.UpdateEventInput) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Catalog CatalogService
	Booking BookingService
	Admin   AdminService
	Hub     *realtime.Hub
	Idem    *redisrepo.IdempotencyStore
	Logger  *slog.Logger

	// AllowOrigin is handed to the CORS middleware.
	AllowOrigin string
}

func NewRouter(deps Deps, middlewares ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(deps.Logger), RequestIDMiddleware(), CORS(deps.AllowOrigin))
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
	})

	events := r.Group("/api/events")
	{
		events.GET("", handleListEvents(deps.Catalog))
		events.GET("/:id", handleGetEvent(deps.Catalog))

		// Admin mutations. Deliberately unauthenticated, as in the
		// original application.
		events.POST("", handleCreateEvent(deps.Admin))
		events.PUT("/:id", handleUpdateEvent(deps.Admin))
		events.DELETE("/:id", handleDeleteEvent(deps.Admin))
	}

	bookings := r.Group("/api/bookings")
	{
		bookings.GET("", handleListBookings(deps.Booking))
		bookings.GET("/code/:code", handleGetBookingByCode(deps.Booking))
		bookings.GET("/event/:eventId", handleListBookingsByEvent(deps.Booking))
		bookings.POST("", handleCreateBooking(deps.Booking, deps.Idem))
		bookings.PUT("/:id/cancel", handleCancelBooking(deps.Booking))
	}

	rt := r.Group("/realtime")
	{
		rt.GET("", handleRealtime(deps.Hub))
		rt.POST("/:clientID/events/:eventID", handleJoinEvent(deps.Hub))
		rt.DELETE("/:clientID/events/:eventID", handleLeaveEvent(deps.Hub))
	}

	return r
}

// --- Handlers ---

// @Summary  List events
// @Param    search     query  string  false  "substring of title or description"
// @Param    location   query  string  false  "substring of location"
// @Param    date       query  string  false  "exact calendar date (YYYY-MM-DD)"
// @Param    startDate  query  string  false  "lower date bound"
// @Param    endDate    query  string  false  "upper date bound"
// @Success  200  {object}  SuccessResponse
// @Router   /api/events [get]
func handleListEvents(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f domain.EventFilter

		f.Search = c.Query("search")
		f.Location = c.Query("location")

		for q, dst := range map[string]**time.Time{
			"date":      &f.Date,
			"startDate": &f.From,
			"endDate":   &f.To,
		} {
			if s := c.Query(q); s != "" {
				t, err := parseDate(s)
				if err != nil {
					badRequest(c, "invalid "+q)
					return
				}
				*dst = &t
			}
		}

		events, err := svc.List(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, successResponse(events), "public, max-age=15", true)
	}
}

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/events/{id} [get]
func handleGetEvent(svc CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svc.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, successResponse(e), "public, max-age=15", true)
	}
}

// @Summary  Create event (admin)
// @Param    req  body  CreateEventRequest  true  "payload"
// @Success  201  {object}  SuccessResponse
// @Failure  400  {object}  ErrorResponse
// @Router   /api/events [post]
func handleCreateEvent(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Title, location, and date are required")
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			badRequest(c, "invalid date")
			return
		}

		e, err := svc.CreateEvent(c.Request.Context(), admin.CreateEventInput{
			Title:       req.Title,
			Description: req.Description,
			Location:    req.Location,
			Date:        date,
			TotalSeats:  req.TotalSeats,
			Price:       req.Price,
			Img:         req.Img,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, successResponse(e))
	}
}

// @Summary  Update event (admin)
// @Param    id   path  int                 true  "Event ID"
// @Param    req  body  UpdateEventRequest  true  "payload"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/events/{id} [put]
func handleUpdateEvent(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}

		var req UpdateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		in := admin.UpdateEventInput{
			Title:       req.Title,
			Description: req.Description,
			Location:    req.Location,
			TotalSeats:  req.TotalSeats,
			Price:       req.Price,
			Img:         req.Img,
		}

		if req.Date != nil {
			date, err := parseDate(*req.Date)
			if err != nil {
				badRequest(c, "invalid date")
				return
			}
			in.Date = &date
		}

		e, err := svc.UpdateEvent(c.Request.Context(), eventID, in)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(e))
	}
}

// @Summary  Delete event (admin)
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  MessageResponse
// @Failure  409  {object}  ErrorResponse  "event still has confirmed bookings"
// @Router   /api/events/{id} [delete]
func handleDeleteEvent(svc AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteEvent(c.Request.Context(), eventID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Event deleted successfully"})
	}
}

// @Summary  Create booking (idempotent)
// @Param    req  body  CreateBookingRequest  true  "payload"
// @Header   201  {string}  Idempotency-Key  "echo"
// @Success  201  {object}  SuccessResponse
// @Failure  400  {object}  ErrorResponse  "validation / not enough seats"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /api/bookings [post]
func handleCreateBooking(svc BookingService, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "All fields are required")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, errorResponse("Idempotency key in progress"))
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		bwe, err := svc.Reserve(c.Request.Context(), booking.ReserveInput{
			EventID:  req.EventID,
			Name:     req.Name,
			Email:    req.Email,
			Mobile:   req.Mobile,
			Quantity: req.Quantity,
		}, rlKey)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if errors.Is(err, booking.ErrRateLimited) {
				c.Header("Retry-After", "60")
				c.JSON(http.StatusTooManyRequests, errorResponse("Too many booking attempts"))
				return
			}
			respondErr(c, err)
			return
		}

		resp := successResponse(bwe)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Cancel booking
// @Param    id  path  int  true  "Booking ID"
// @Success  200  {object}  MessageResponse
// @Failure  400  {object}  ErrorResponse  "already cancelled"
// @Failure  404  {object}  ErrorResponse
// @Router   /api/bookings/{id}/cancel [put]
func handleCancelBooking(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svc.Cancel(c.Request.Context(), bookingID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Booking cancelled successfully"})
	}
}

// @Summary  Get booking by code
// @Param    code  path  string  true  "public booking code"
// @Success  200  {object}  SuccessResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /api/bookings/code/{code} [get]
func handleGetBookingByCode(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bwe, err := svc.GetByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(bwe))
	}
}

// @Summary  List bookings (admin)
// @Success  200  {object}  SuccessResponse
// @Router   /api/bookings [get]
func handleListBookings(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svc.ListAll(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(out))
	}
}

// @Summary  List confirmed bookings of one event
// @Param    eventId  path  int  true  "Event ID"
// @Success  200  {object}  SuccessResponse
// @Router   /api/bookings/event/{eventId} [get]
func handleListBookingsByEvent(svc BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "eventId")
		if !ok {
			return
		}
		out, err := svc.ListByEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, successResponse(out))
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseInt64Query(c *gin.Context, name string) (int64, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse(msg))
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var insuff *booking.InsufficientSeatsError

	switch {
	// booking service
	case errors.As(err, &insuff):
		c.JSON(http.StatusBadRequest, errorResponse(insuff.Error()))
	case errors.Is(err, booking.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse("All fields are required"))
	case errors.Is(err, booking.ErrEventNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Event not found"))
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Booking not found"))
	case errors.Is(err, booking.ErrAlreadyCancelled):
		c.JSON(http.StatusBadRequest, errorResponse("Booking already cancelled"))
	// catalog service
	case errors.Is(err, catalog.ErrEventNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Event not found"))
	// admin service
	case errors.Is(err, admin.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse("Title, location, and date are required"))
	case errors.Is(err, admin.ErrEventNotFound):
		c.JSON(http.StatusNotFound, errorResponse("Event not found"))
	case errors.Is(err, admin.ErrHasBookings):
		c.JSON(http.StatusConflict, errorResponse("Event has confirmed bookings"))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
	}
}
