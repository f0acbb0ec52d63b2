package pennant

import (
	"context"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

// LoadPayload decodes a full JSON payload and installs it as the current
// snapshot of namespace. On any error the previous snapshot keeps serving.
func (e *Engine) LoadPayload(ctx context.Context, name string, data []byte) (HistoryEntry, error) {
	return e.loadWith(ctx, name, "load", func(ns *namespace) (HistoryEntry, error) {
		s, err := ns.codec.Decode(data)
		if err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Load(s)
	})
}

// LoadYAML is LoadPayload for YAML documents.
func (e *Engine) LoadYAML(ctx context.Context, name string, data []byte) (HistoryEntry, error) {
	return e.loadWith(ctx, name, "load", func(ns *namespace) (HistoryEntry, error) {
		s, err := ns.codec.DecodeYAML(data)
		if err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Load(s)
	})
}

// PatchPayload decodes a JSON patch and overlays it on the current snapshot.
func (e *Engine) PatchPayload(ctx context.Context, name string, data []byte) (HistoryEntry, error) {
	return e.loadWith(ctx, name, "patch", func(ns *namespace) (HistoryEntry, error) {
		p, err := ns.codec.DecodePatch(data)
		if err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Patch(p)
	})
}

// PatchYAML is PatchPayload for YAML documents.
func (e *Engine) PatchYAML(ctx context.Context, name string, data []byte) (HistoryEntry, error) {
	return e.loadWith(ctx, name, "patch", func(ns *namespace) (HistoryEntry, error) {
		p, err := ns.codec.DecodePatchYAML(data)
		if err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Patch(p)
	})
}

// Load installs a snapshot built in code.
func (e *Engine) Load(ctx context.Context, s *Snapshot) (HistoryEntry, error) {
	if s == nil {
		return HistoryEntry{}, domain.NewValidationError("cannot load a nil snapshot")
	}
	return e.loadWith(ctx, s.Namespace(), "load", func(ns *namespace) (HistoryEntry, error) {
		if err := ns.codec.CheckDeclared(s.Definitions()); err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Load(s)
	})
}

// Patch overlays a patch built in code on the current snapshot of namespace.
func (e *Engine) Patch(ctx context.Context, name string, p Patch) (HistoryEntry, error) {
	return e.loadWith(ctx, name, "patch", func(ns *namespace) (HistoryEntry, error) {
		if err := ns.codec.CheckDeclared(p.Upserts); err != nil {
			return HistoryEntry{}, err
		}
		return ns.registry.Patch(p)
	})
}

func (e *Engine) loadWith(ctx context.Context, namespace, op string, install func(*namespace) (HistoryEntry, error)) (HistoryEntry, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return HistoryEntry{}, err
	}

	ctx, span := e.telemetry.StartSpan(ctx, "pennant."+op,
		telemetry.WithAttributes(telemetry.String("namespace", namespace)))
	defer span.End()

	start := time.Now()
	entry, err := install(ns)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		e.telemetry.RecordLoad(ctx, namespace, op, false, elapsed, 0)
		e.logger.Warn("configuration rejected, keeping previous snapshot",
			"namespace", namespace,
			"op", op,
			"error", err)
		return HistoryEntry{}, err
	}

	span.SetAttributes(
		telemetry.String("revision", entry.Revision.String()),
		telemetry.Int("flags", entry.FeatureCount),
	)
	e.telemetry.RecordLoad(ctx, namespace, op, true, elapsed, entry.FeatureCount)
	e.logger.Info("snapshot installed",
		"namespace", namespace,
		"op", op,
		"version", entry.Version,
		"revision", entry.Revision.String(),
		"flags", entry.FeatureCount,
		"duration", elapsed)
	return entry, nil
}

// Rollback restores the snapshot installed steps loads ago. The current
// snapshot is discarded, not pushed onto the history.
func (e *Engine) Rollback(ctx context.Context, namespace string, steps int) (HistoryEntry, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return HistoryEntry{}, err
	}

	entry, err := ns.registry.Rollback(steps)
	e.telemetry.RecordRollback(ctx, namespace, err == nil)
	if err != nil {
		e.logger.Warn("rollback refused", "namespace", namespace, "steps", steps, "error", err)
		return HistoryEntry{}, err
	}

	e.logger.Info("rolled back",
		"namespace", namespace,
		"steps", steps,
		"version", entry.Version,
		"revision", entry.Revision.String())
	return entry, nil
}

// DisableAll turns on the namespace kill switch: every toggle resolves to
// its default with DecisionRegistryDisabled until EnableAll.
func (e *Engine) DisableAll(ctx context.Context, namespace string) error {
	return e.setEnabled(ctx, namespace, false)
}

// EnableAll turns the namespace kill switch off.
func (e *Engine) EnableAll(ctx context.Context, namespace string) error {
	return e.setEnabled(ctx, namespace, true)
}

func (e *Engine) setEnabled(ctx context.Context, namespace string, enabled bool) error {
	ns, err := e.lookup(namespace)
	if err != nil {
		return err
	}

	if enabled {
		ns.registry.Enable()
	} else {
		ns.registry.Disable()
	}
	e.telemetry.RecordKillSwitch(ctx, namespace, enabled)
	e.logger.Info("kill switch changed", "namespace", namespace, "enabled", enabled)
	return nil
}

// Enabled reports whether the namespace kill switch is off.
func (e *Engine) Enabled(namespace string) (bool, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return false, err
	}
	return ns.registry.Enabled(), nil
}

// History lists the retained rollback points, newest first.
func (e *Engine) History(namespace string) ([]HistoryEntry, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return nil, err
	}
	return ns.registry.History(), nil
}

// Snapshot returns the current snapshot of namespace.
func (e *Engine) Snapshot(namespace string) (*Snapshot, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return nil, err
	}
	return ns.registry.Current(), nil
}

// EncodeSnapshot renders the current snapshot in the payload format.
func (e *Engine) EncodeSnapshot(namespace string) ([]byte, error) {
	ns, err := e.lookup(namespace)
	if err != nil {
		return nil, err
	}
	return ns.codec.Encode(ns.registry.Current())
}
