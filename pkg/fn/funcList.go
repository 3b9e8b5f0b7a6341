package fn

import "sync"

// FuncList collects cleanup functions and executes them in reverse order.
type FuncList struct {
	mutex sync.Mutex
	funcs []func()
}

func (f *FuncList) AddFunc(fn func()) {
	if fn == nil {
		return
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.funcs = append(f.funcs, fn)
}

// Execute calls the collected functions in reverse order and clears the list.
func (f *FuncList) Execute() {
	f.mutex.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mutex.Unlock()
	for i := len(funcs) - 1; i >= 0; i-- {
		funcs[i]()
	}
}

// ToFunction moves the collected functions into a single closure.
func (f *FuncList) ToFunction() func() {
	f.mutex.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mutex.Unlock()
	return func() {
		for i := len(funcs) - 1; i >= 0; i-- {
			funcs[i]()
		}
	}
}
