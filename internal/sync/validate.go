package sync

import (
	"fmt"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// Validation rejects malformed requests before any storage access, so a
// failed request never changes state.

func validateWorkspace(workspaceID string) error {
	if workspaceID == "" {
		return errors.New(errors.ErrValidation, "workspace id is required")
	}
	return nil
}

func validatePush(workspaceID string, ops []models.PushOp) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}
	if len(ops) == 0 {
		return errors.New(errors.ErrValidation, "ops must not be empty")
	}
	for i, op := range ops {
		if op.TableName == "" {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: tableName is required", i))
		}
		if op.PrimaryKey == "" {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: pk is required", i))
		}
		if !op.Operation.IsValid() {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: unknown operation %q", i, op.Operation))
		}
		if op.Stamp.OpID == "" {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: stamp.opId is required", i))
		}
		if op.Operation == models.OperationPut && len(op.Payload) == 0 {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: put requires a payload", i))
		}
		if op.Operation == models.OperationDelete && len(op.Payload) != 0 {
			return errors.New(errors.ErrValidation, fmt.Sprintf("op %d: delete must not carry a payload", i))
		}
	}
	return nil
}

func validatePull(workspaceID string, cursor int64, limit int) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}
	if cursor < 0 {
		return errors.New(errors.ErrValidation, "cursor must not be negative")
	}
	if limit <= 0 {
		return errors.New(errors.ErrValidation, "limit must be positive")
	}
	return nil
}

func validateCursorUpdate(workspaceID, deviceID string, version int64) error {
	if err := validateWorkspace(workspaceID); err != nil {
		return err
	}
	if deviceID == "" {
		return errors.New(errors.ErrValidation, "device id is required")
	}
	if version < 0 {
		return errors.New(errors.ErrValidation, "version must not be negative")
	}
	return nil
}
