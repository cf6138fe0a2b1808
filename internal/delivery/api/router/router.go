// Package router contains routing and server setup for the app instance API.
package router

import (
	"kitchenline/internal/delivery/api/middleware"
	"kitchenline/internal/delivery/api/router/handler"
	"kitchenline/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SessionHandler      *handler.SessionHandler
	OrderHandler        *handler.OrderHandler
	NotificationHandler *handler.NotificationHandler
	ProfileHandler      *handler.ProfileHandler
	AdminHandler        *handler.AdminHandler
	FeedHandler         *handler.FeedHandler
	AuthMiddleware      *middleware.AuthMiddleware
	Registry            *prometheus.Registry
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler      *handler.SessionHandler
	orderHandler        *handler.OrderHandler
	notificationHandler *handler.NotificationHandler
	profileHandler      *handler.ProfileHandler
	adminHandler        *handler.AdminHandler
	feedHandler         *handler.FeedHandler
	authMiddleware      *middleware.AuthMiddleware
	registry            *prometheus.Registry
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler:      params.SessionHandler,
		orderHandler:        params.OrderHandler,
		notificationHandler: params.NotificationHandler,
		profileHandler:      params.ProfileHandler,
		adminHandler:        params.AdminHandler,
		feedHandler:         params.FeedHandler,
		authMiddleware:      params.AuthMiddleware,
		registry:            params.Registry,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	sessionGroup := e.Group("/session")
	{
		sessionGroup.GET("", r.sessionHandler.State)
		sessionGroup.POST("/login", r.sessionHandler.Login)
		sessionGroup.POST("/signup", r.sessionHandler.Signup)
		sessionGroup.POST("/logout", r.sessionHandler.Logout)
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(r.authMiddleware.Authenticate)

	ordersGroup := apiV1.Group("/orders")
	{
		ordersGroup.POST("", r.orderHandler.PlaceOrder, r.authMiddleware.RequireCapability(entity.CapPlaceOrder))
		ordersGroup.GET("", r.orderHandler.ListOrders)
		ordersGroup.GET("/:id", r.orderHandler.GetOrder)
		ordersGroup.POST("/:id/transitions", r.orderHandler.Transition)
		ordersGroup.PUT("/:id/eta", r.orderHandler.SetEstimatedDelivery, r.authMiddleware.RequireCapability(entity.CapSetDeliveryEstimate))
		ordersGroup.POST("/:id/messages", r.orderHandler.SendMessage, r.authMiddleware.RequireCapability(entity.CapChatOnOrder))
	}

	notificationsGroup := apiV1.Group("/notifications")
	{
		notificationsGroup.GET("", r.notificationHandler.List)
		notificationsGroup.GET("/unread-count", r.notificationHandler.UnreadCount)
		notificationsGroup.POST("/read-all", r.notificationHandler.MarkAllRead)
		notificationsGroup.POST("/:id/read", r.notificationHandler.MarkRead)
		notificationsGroup.POST("/:id/unread", r.notificationHandler.MarkUnread)
	}

	profileGroup := apiV1.Group("/profile")
	{
		profileGroup.GET("", r.profileHandler.GetProfile)
		profileGroup.PUT("", r.profileHandler.UpdateProfile)
		profileGroup.POST("/push-tokens", r.profileHandler.AddPushToken)
	}
	apiV1.POST("/uploads", r.profileHandler.Upload, r.authMiddleware.RequireCapability(entity.CapUploadMedia))

	feedsGroup := apiV1.Group("/feeds")
	{
		feedsGroup.GET("", r.feedHandler.LiveKeys)
		feedsGroup.PUT("/orders", r.feedHandler.WatchOrders)
		feedsGroup.GET("/orders", r.feedHandler.LatestOrders)
		feedsGroup.PUT("/orders/:id", r.feedHandler.WatchOrder)
		feedsGroup.GET("/orders/:id", r.feedHandler.LatestOrder)
		feedsGroup.PUT("/notifications", r.feedHandler.WatchNotifications)
		feedsGroup.GET("/notifications", r.feedHandler.LatestNotifications)
		feedsGroup.DELETE("/:key", r.feedHandler.Unwatch)
	}

	adminGroup := apiV1.Group("/admin")
	{
		adminGroup.GET("/dashboard", r.adminHandler.Dashboard, r.authMiddleware.RequireCapability(entity.CapViewDashboard))
		adminGroup.POST("/actors/:id/verify", r.adminHandler.VerifyActor, r.authMiddleware.RequireCapability(entity.CapVerifyActors))
	}
}
