package rsz

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals emitted by the codec.
var (
	SignalDecodeComplete = capitan.NewSignal("rsz.decode.complete", "Container decode finished")
	SignalEncodeComplete = capitan.NewSignal("rsz.encode.complete", "Container encode finished")
	SignalInfer          = capitan.NewSignal("rsz.infer", "Opaque field type resolved")
	SignalWarning        = capitan.NewSignal("rsz.warning", "Unusual data reported")
)

// Keys of the fields carried by signals.
var (
	KeyClass     = capitan.NewStringKey("class")
	KeyField     = capitan.NewStringKey("field")
	KeyType      = capitan.NewStringKey("type")
	KeyIndex     = capitan.NewIntKey("index")
	KeyInstances = capitan.NewIntKey("instances")
	KeyWarnings  = capitan.NewIntKey("warnings")
	KeySize      = capitan.NewIntKey("size")
	KeyDuration  = capitan.NewDurationKey("duration")
	KeyError     = capitan.NewErrorKey("error")
)

func emitDecodeComplete(ctx context.Context, instances, warnings int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyInstances.Field(instances),
		KeyWarnings.Field(warnings),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDecodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDecodeComplete, fields...)
	}
}

func emitEncodeComplete(ctx context.Context, instances int, size int64, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyInstances.Field(instances),
		KeySize.Field(int(size)),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalEncodeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalEncodeComplete, fields...)
	}
}

func emitInfer(ctx context.Context, class, field, typ string, index int) {
	capitan.Emit(ctx, SignalInfer,
		KeyClass.Field(class),
		KeyField.Field(field),
		KeyType.Field(typ),
		KeyIndex.Field(index),
	)
}

func emitWarning(ctx context.Context, w Warning) {
	capitan.Emit(ctx, SignalWarning,
		KeyClass.Field(w.Class),
		KeyField.Field(w.Field),
		KeyIndex.Field(w.Index),
		KeyError.Field(w),
	)
}
