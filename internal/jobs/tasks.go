package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeCatalogRefresh = "catalog:refresh"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// CatalogRefreshPayload carries the price file path to reload from.
type CatalogRefreshPayload struct {
	Path string `json:"path"`
}

// NewCatalogRefreshTask builds a task that reloads the price catalog.
func NewCatalogRefreshTask(path string) (*asynq.Task, error) {
	payload, err := json.Marshal(CatalogRefreshPayload{Path: path})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeCatalogRefresh, payload, asynq.Queue(QueueLow)), nil
}
