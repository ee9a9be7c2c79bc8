package sim

import "github.com/nstehr/vimy/vimy-instance/model"

// factory is the production line for one buildable kind of one house.
type factory struct {
	Item     int                `json:"item"`
	State    model.FactoryState `json:"state"`
	Progress int                `json:"progress"`
}

func newFactory() *factory {
	return &factory{Item: -1, State: model.FactoryIdle}
}

func (f *factory) start(item int) bool {
	switch f.State {
	case model.FactoryIdle:
		f.Item, f.State, f.Progress = item, model.FactoryBuilding, 0
		return true
	case model.FactoryOnHold:
		if f.Item != item {
			return false
		}
		f.State = model.FactoryBuilding
		return true
	}
	return false
}

func (f *factory) suspend() bool {
	if f.State != model.FactoryBuilding {
		return false
	}
	f.State = model.FactoryOnHold
	return true
}

func (f *factory) abandon() bool {
	if f.State == model.FactoryIdle {
		return false
	}
	*f = *newFactory()
	return true
}

// advance moves production forward by step percent.
func (f *factory) advance(step int) {
	if f.State != model.FactoryBuilding {
		return
	}
	f.Progress = min(100, f.Progress+step)
	if f.Progress == 100 {
		f.State = model.FactoryCompleted
	}
}

// take consumes a completed item, e.g. when a building is placed.
func (f *factory) take(item int) bool {
	if f.State != model.FactoryCompleted || f.Item != item {
		return false
	}
	*f = *newFactory()
	return true
}
