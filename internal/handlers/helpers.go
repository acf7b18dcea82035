package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chriskampolis/cf7-restaurant-backend/internal/mykafka"
)

// publishEvent emits a domain event best-effort; a broker outage never fails
// the request that already committed.
func publishEvent(c echo.Context, p *mykafka.Producer, topic string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
