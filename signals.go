package veil

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for pipeline events.
var (
	SignalProcessorCreated = capitan.NewSignal("veil.processor.created", "Processor instantiated")
	SignalWriteStart       = capitan.NewSignal("veil.write.start", "Write path beginning")
	SignalWriteComplete    = capitan.NewSignal("veil.write.complete", "Write path finished")
	SignalReadStart        = capitan.NewSignal("veil.read.start", "Read path beginning")
	SignalReadComplete     = capitan.NewSignal("veil.read.complete", "Read path finished")
	SignalDigestMissing    = capitan.NewSignal("veil.digest.missing", "Digest field absent, digest skipped")
	SignalDecryptDegraded  = capitan.NewSignal("veil.decrypt.degraded", "Decrypt failed, value left unchanged")
	SignalMaskSkipped      = capitan.NewSignal("veil.mask.skipped", "Mask could not be applied")
)

// Keys for typed event data.
var (
	KeyContentType    = capitan.NewStringKey("content_type")
	KeyTypeName       = capitan.NewStringKey("type_name")
	KeyField          = capitan.NewStringKey("field")
	KeyOperation      = capitan.NewStringKey("operation")
	KeySize           = capitan.NewIntKey("size")
	KeyDuration       = capitan.NewDurationKey("duration")
	KeyError          = capitan.NewErrorKey("error")
	KeyDigestedCount  = capitan.NewIntKey("digested_count")
	KeyEncryptedCount = capitan.NewIntKey("encrypted_count")
	KeyDecryptedCount = capitan.NewIntKey("decrypted_count")
	KeyMaskedCount    = capitan.NewIntKey("masked_count")
)

// counts tallies field transformations for one pass.
type counts struct {
	digested  int
	encrypted int
	decrypted int
	masked    int
}

func emitProcessorCreated(ctx context.Context, contentType, typeName string) {
	capitan.Emit(ctx, SignalProcessorCreated,
		KeyContentType.Field(contentType),
		KeyTypeName.Field(typeName),
	)
}

func emitWriteStart(ctx context.Context, operation string) {
	capitan.Emit(ctx, SignalWriteStart,
		KeyOperation.Field(operation),
	)
}

func emitWriteComplete(ctx context.Context, operation string, duration time.Duration, c counts, err error) {
	fields := []capitan.Field{
		KeyOperation.Field(operation),
		KeyDuration.Field(duration),
		KeyDigestedCount.Field(c.digested),
		KeyEncryptedCount.Field(c.encrypted),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalWriteComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalWriteComplete, fields...)
	}
}

func emitReadStart(ctx context.Context, operation string) {
	capitan.Emit(ctx, SignalReadStart,
		KeyOperation.Field(operation),
	)
}

func emitReadComplete(ctx context.Context, operation string, duration time.Duration, c counts) {
	capitan.Emit(ctx, SignalReadComplete,
		KeyOperation.Field(operation),
		KeyDuration.Field(duration),
		KeyDecryptedCount.Field(c.decrypted),
		KeyMaskedCount.Field(c.masked),
	)
}

func emitDigestMissing(ctx context.Context, typeName, field string) {
	capitan.Error(ctx, SignalDigestMissing,
		KeyTypeName.Field(typeName),
		KeyField.Field(field),
		KeyError.Field(ErrDigestFieldMissing),
	)
}

func emitDecryptDegraded(ctx context.Context, typeName, field string, err error) {
	capitan.Error(ctx, SignalDecryptDegraded,
		KeyTypeName.Field(typeName),
		KeyField.Field(field),
		KeyError.Field(err),
	)
}

func emitMaskSkipped(ctx context.Context, typeName, field string, err error) {
	capitan.Error(ctx, SignalMaskSkipped,
		KeyTypeName.Field(typeName),
		KeyField.Field(field),
		KeyError.Field(err),
	)
}
