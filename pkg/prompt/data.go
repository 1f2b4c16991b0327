package prompt

import (
	"github.com/boristopalov/sciworld/pkg/core"
)

// Component-local keys merged on top of the snapshot fields.
const (
	KeyObjects       = "objects"
	KeyActions       = "actions"
	KeyActionCatalog = "action_catalog"
	KeyScore         = "score"
)

// Data is the merged mapping a template renders against. Only fields that
// were actually present in the snapshot are bound.
type Data map[string]any

// Set binds key and returns d for chaining.
func (d Data) Set(key string, v any) Data {
	d[key] = v
	return d
}

// Delete unbinds key and returns d for chaining.
func (d Data) Delete(key string) Data {
	delete(d, key)
	return d
}

func snapshotData(snap *core.Snapshot, list ListFormat) Data {
	d := Data{}
	if snap == nil {
		return d
	}
	if snap.Has(core.KeyTaskDescription) {
		d[core.KeyTaskDescription] = snap.TaskDescription
	}
	if snap.Has(core.KeyObservation) {
		d[core.KeyObservation] = snap.Observation
	}
	if snap.Has(core.KeyReward) {
		d[core.KeyReward] = snap.Reward
	}
	if snap.Has(core.KeyComplete) {
		d[core.KeyComplete] = snap.Complete
	}
	if snap.Has(core.KeyInfo) {
		info := snap.Info
		if info == nil {
			info = map[string]any{}
		}
		d[core.KeyInfo] = info
		if score, ok := snap.Score(); ok {
			d[KeyScore] = score
		}
	}
	if snap.Has(core.KeyGoldPath) && snap.GoldPath != nil {
		d[core.KeyGoldPath] = snap.GoldPath
	}
	if snap.Has(core.KeyChoices) {
		objects := formatList(list, snap.Choices.Objects)
		actions := formatList(list, snap.Choices.Actions)
		d[core.KeyChoices] = map[string]any{
			KeyObjects: objects,
			KeyActions: actions,
		}
		d[KeyObjects] = objects
		d[KeyActions] = actions
	}
	return d
}
