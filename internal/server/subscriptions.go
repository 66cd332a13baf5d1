package server

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/piwi3910/msolo/internal/lcmerr"
	"github.com/piwi3910/msolo/internal/models"
)

// Subscription handlers

func (s *Server) handleListSubscriptions(c *gin.Context) {
	start := time.Now()
	subs, err := s.repo.ListSubscriptions(c.Request.Context(), c.Param("orcId"))
	s.recordRepository("list_subscriptions", start, err)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	c.JSON(http.StatusOK, subs)
}

func (s *Server) handleCreateSubscription(c *gin.Context) {
	var sub models.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.abortWithError(c, lcmerr.BadRequest("Invalid subscription: %v", err))
		return
	}
	if len(sub.NotificationTypes) == 0 {
		sub.NotificationTypes = []string{models.NsLcmOperationOccurrenceNotification}
	}
	if err := s.validate.Struct(&sub); err != nil {
		s.abortWithError(c, lcmerr.BadRequest("%s", describeValidation(err)))
		return
	}

	orcID := c.Param("orcId")
	start := time.Now()
	created, err := s.repo.CreateSubscription(c.Request.Context(), orcID, &sub)
	s.recordRepository("create_subscription", start, err)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.log.WithContext(c.Request.Context()).LogSubscriptionEvent("created", created.ID, orcID)
	c.Header("Location", fmt.Sprintf("/nfvo/%s/subscriptions/%s", orcID, created.ID))
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetSubscription(c *gin.Context) {
	start := time.Now()
	sub, err := s.repo.GetSubscription(c.Request.Context(), c.Param("orcId"), c.Param("subId"))
	s.recordRepository("get_subscription", start, err)
	if err != nil {
		s.abortWithError(c, lcmerr.Remap(err, lcmerr.SubscriptionNotFound(c.Param("subId"))))
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleDeleteSubscription(c *gin.Context) {
	orcID, subID := c.Param("orcId"), c.Param("subId")
	start := time.Now()
	err := s.repo.DeleteSubscription(c.Request.Context(), orcID, subID)
	s.recordRepository("delete_subscription", start, err)
	if err != nil {
		s.abortWithError(c, lcmerr.Remap(err, lcmerr.SubscriptionNotFound(subID)))
		return
	}

	s.log.WithContext(c.Request.Context()).LogSubscriptionEvent("deleted", subID, orcID)
	c.Status(http.StatusNoContent)
}

// handleNotification accepts a notification pushed by a backend and queues
// it for delivery to the subscribers of its NS instance.
func (s *Server) handleNotification(c *gin.Context) {
	var n models.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		s.rejectNotification(c, lcmerr.BadRequest("Invalid notification: %v", err))
		return
	}
	if err := s.validate.Struct(&n); err != nil {
		s.rejectNotification(c, lcmerr.BadRequest("%s", describeValidation(err)))
		return
	}
	if n.NotificationType == "" {
		n.NotificationType = models.NsLcmOperationOccurrenceNotification
	}

	id, err := s.queue.Enqueue(c.Request.Context(), n)
	if err != nil {
		s.abortWithError(c, lcmerr.ServerError("failed to queue notification: %v", err))
		return
	}
	if s.metrics != nil {
		s.metrics.RecordNotificationReceived(true)
	}

	s.logger.Debug("notification queued",
		zap.String("orchestrator_id", c.Param("orcId")),
		zap.String("ns_instance_id", n.NsInstanceID),
		zap.String("operation_state", n.OperationState),
		zap.String("message_id", id),
	)
	c.Status(http.StatusNoContent)
}

func (s *Server) rejectNotification(c *gin.Context, err error) {
	if s.metrics != nil {
		s.metrics.RecordNotificationReceived(false)
	}
	s.abortWithError(c, err)
}

// describeValidation turns validator errors into a client message naming
// the offending JSON fields.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("Missing required field %s.", field))
		case "url":
			msgs = append(msgs, fmt.Sprintf("Field %s must be a valid URL.", field))
		default:
			msgs = append(msgs, fmt.Sprintf("Field %s is invalid.", field))
		}
	}
	return strings.Join(msgs, " ")
}

// newValidator returns a validator reporting fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
