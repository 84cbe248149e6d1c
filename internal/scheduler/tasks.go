package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskExtractPalette = "media.palette.extract"

type ExtractPalettePayload struct {
	AssetID string `json:"assetId"`
}

func NewExtractPaletteTask(payload ExtractPalettePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExtractPalette, data), nil
}

func ParseExtractPalettePayload(task *asynq.Task) (ExtractPalettePayload, error) {
	var payload ExtractPalettePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExtractPalettePayload{}, err
	}
	return payload, nil
}
