package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskTranscribeRecording = "recordings.transcribe"

const TaskScoreRecording = "scoring.recording"

type RecordingPayload struct {
	RecordingID string `json:"recordingId"`
}

func NewTranscribeRecordingTask(payload RecordingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTranscribeRecording, data), nil
}

func NewScoreRecordingTask(payload RecordingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreRecording, data), nil
}

func ParseRecordingPayload(task *asynq.Task) (RecordingPayload, error) {
	var payload RecordingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecordingPayload{}, err
	}
	return payload, nil
}
