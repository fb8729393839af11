package keys

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for key lifecycle events.
var (
	SignalKeyCreated    = capitan.NewSignal("veil.key.created", "New key version installed")
	SignalKeyRotated    = capitan.NewSignal("veil.key.rotated", "Active key version replaced")
	SignalSweepComplete = capitan.NewSignal("veil.key.sweep.complete", "Expiry sweep finished")
)

// Keys for typed event data.
var (
	KeySlot     = capitan.NewStringKey("slot")
	KeyVersion  = capitan.NewIntKey("version")
	KeyPrevious = capitan.NewIntKey("previous_version")
	KeyRemark   = capitan.NewStringKey("remark")
	KeyRotated  = capitan.NewIntKey("rotated_count")
	KeyDuration = capitan.NewDurationKey("duration")
	KeyError    = capitan.NewErrorKey("error")
)

func emitKeyCreated(ctx context.Context, rec *Record) {
	capitan.Emit(ctx, SignalKeyCreated,
		KeySlot.Field(rec.Slot),
		KeyVersion.Field(int(rec.Version)),
		KeyRemark.Field(rec.Remark),
	)
}

func emitKeyRotated(ctx context.Context, slot string, prev, next int64) {
	capitan.Emit(ctx, SignalKeyRotated,
		KeySlot.Field(slot),
		KeyPrevious.Field(int(prev)),
		KeyVersion.Field(int(next)),
	)
}

func emitSweepComplete(ctx context.Context, rotated int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyRotated.Field(rotated),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSweepComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalSweepComplete, fields...)
	}
}
