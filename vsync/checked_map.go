package vsync

import "sync"

// CheckedMap hands out names exclusively: a second Lock of a held name fails.
type CheckedMap struct {
	names map[string]interface{}
	l     sync.Mutex
}

func NewCheckedMap() *CheckedMap {
	return &CheckedMap{
		names: make(map[string]interface{}),
	}
}

func (cm *CheckedMap) Lock(name string, i interface{}) bool {
	cm.l.Lock()
	defer cm.l.Unlock()
	if _, ok := cm.names[name]; ok {
		return false
	}
	cm.names[name] = i
	return true
}

func (cm *CheckedMap) Unlock(name string) {
	cm.l.Lock()
	defer cm.l.Unlock()
	delete(cm.names, name)
}

func (cm *CheckedMap) Holder(name string) (interface{}, bool) {
	cm.l.Lock()
	defer cm.l.Unlock()
	i, ok := cm.names[name]
	return i, ok
}
