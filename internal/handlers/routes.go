package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/schoolhub/booking-backend/internal/middleware"
	"github.com/schoolhub/booking-backend/internal/models"
	"github.com/schoolhub/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// Handlers groups every HTTP handler of the booking API
type Handlers struct {
	Inventory *InventoryHandler
	Booking   *BookingHandler
	Payment   *PaymentHandler
	Admin     *AdminHandler
}

// RegisterRoutes mounts the booking API on api (normally /api/v1)
func RegisterRoutes(api *gin.RouterGroup, h Handlers, jwtService *jwt.Service, logger *logrus.Logger) {
	// Gateway webhooks authenticate by body signature, not by JWT
	api.POST("/payments/webhook", h.Payment.Webhook)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService, logger))

	schoolAdmin := middleware.RequireRole(models.RoleSchoolAdmin, models.RoleSuperAdmin)
	student := middleware.RequireRole(models.RoleStudent)

	// Bus routes
	bus := protected.Group("/bus")
	{
		bus.POST("/create", schoolAdmin, h.Inventory.CreateBus)
		bus.GET("/list", h.Inventory.ListBuses)
		bus.GET("/bookings", schoolAdmin, h.Admin.ListBusBookings)
		bus.POST("/booking", student, h.Booking.BookBus)
		bus.POST("/booking/verify", student, h.Booking.VerifyPayment)
	}

	// Hostel routes
	hostel := protected.Group("/hostel")
	{
		hostel.POST("/create", schoolAdmin, h.Inventory.CreateHostel)
		hostel.GET("/list", h.Inventory.ListHostels)
		hostel.GET("/bookings", schoolAdmin, h.Admin.ListHostelBookings)
		hostel.POST("/booking", student, h.Booking.BookHostel)
		hostel.POST("/booking/verify", student, h.Booking.VerifyPayment)
	}

	// Resource maintenance
	resources := protected.Group("/resources")
	{
		resources.GET("/:id/availability", h.Inventory.Availability)
		resources.DELETE("/:id", schoolAdmin, h.Inventory.DeleteResource)
		resources.PATCH("/:id/capacity", schoolAdmin, h.Inventory.UpdateCapacity)
	}

	// Booking routes
	bookings := protected.Group("/bookings")
	{
		bookings.GET("/:id", h.Booking.GetBooking)
		bookings.POST("/:id/cancel", student, h.Booking.CancelMyBooking)
	}

	// Admin routes
	admin := protected.Group("/admin")
	{
		admin.GET("/bookings/:id/audits", schoolAdmin, h.Admin.BookingAudits)
		admin.POST("/bookings/:id/cancel", schoolAdmin, h.Admin.CancelBooking)

		expiry := admin.Group("/expiry")
		expiry.Use(middleware.RequireRole(models.RoleSuperAdmin))
		{
			expiry.POST("/run", h.Admin.RunExpiry)
			expiry.GET("/status", h.Admin.ExpiryStatus)
		}
	}
}
