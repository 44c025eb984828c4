package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/middleware"
	"github.com/noah-isme/lingowow-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Periods    *AcademicPeriodHandler
	Enroll     *EnrollmentHandler
	Bookings   *BookingHandler
	Attendance *AttendanceHandler
	Payroll    *PayrollHandler
	Coupons    *CouponHandler
	Credits    *CreditHandler
	Checkout   *CheckoutHandler
}

// RouteGuards carries the middleware shared across routes.
type RouteGuards struct {
	Auth        gin.HandlerFunc
	LoginLimit  gin.HandlerFunc
	CouponLimit gin.HandlerFunc
}

// Register mounts the API on group.
func Register(api *gin.RouterGroup, h Handlers, guards RouteGuards) {
	pass := func(c *gin.Context) { c.Next() }
	if guards.LoginLimit == nil {
		guards.LoginLimit = pass
	}
	if guards.CouponLimit == nil {
		guards.CouponLimit = pass
	}
	can := middleware.RequireCapability

	api.POST("/auth/login", guards.LoginLimit, h.Auth.Login)
	api.GET("/payroll/exports/download/:token", h.Payroll.Download)
	api.POST("/webhooks/payments/:provider", h.Checkout.Webhook)

	secured := api.Group("")
	secured.Use(guards.Auth)

	secured.GET("/users", can(models.CapUsersRead), h.Users.List)

	secured.GET("/periods", h.Periods.List)
	secured.GET("/periods/active", h.Periods.Active)
	secured.POST("/periods", can(models.CapPeriodsManage), h.Periods.Create)

	secured.GET("/enrollments", h.Enroll.List)
	secured.GET("/enrollments/:id", h.Enroll.Get)
	secured.POST("/enrollments", can(models.CapEnrollmentsManage), h.Enroll.Create)
	secured.POST("/enrollments/:id/cancel", can(models.CapEnrollmentsManage), h.Enroll.Cancel)
	secured.POST("/enrollments/:id/schedule", can(models.CapBookingsGenerate), h.Bookings.Generate)
	secured.GET("/enrollments/:id/schedules", h.Enroll.Schedules)

	secured.GET("/bookings", h.Bookings.List)
	secured.POST("/bookings/:id/cancel", h.Bookings.Cancel)
	secured.POST("/bookings/:id/attendance", can(models.CapAttendanceRecord), h.Attendance.Record)
	secured.GET("/bookings/:id/attendance", h.Attendance.Check)

	secured.GET("/payroll/earnings", can(models.CapPayrollRead), h.Payroll.Earnings)
	secured.POST("/payroll/exports", can(models.CapPayrollExport), h.Payroll.RequestExport)
	secured.GET("/payroll/exports/:id", can(models.CapPayrollExport), h.Payroll.ExportStatus)

	secured.POST("/coupons/validate", guards.CouponLimit, h.Coupons.Validate)
	secured.GET("/coupons", can(models.CapCouponsManage), h.Coupons.List)
	secured.POST("/coupons", can(models.CapCouponsManage), h.Coupons.Create)

	secured.GET("/credits/balance", h.Credits.Balance)
	secured.GET("/credits/transactions", h.Credits.Transactions)
	secured.POST("/credits/spend", can(models.CapCreditsSpend), h.Credits.Spend)
	secured.POST("/credits/grants", can(models.CapCreditsGrant), h.Credits.Grant)

	secured.POST("/checkout", can(models.CapCheckoutCreate), h.Checkout.Checkout)
}
