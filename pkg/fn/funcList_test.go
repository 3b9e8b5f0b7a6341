package fn_test

import (
	"testing"

	"github.com/plgd-dev/websub-hub/pkg/fn"
	"github.com/stretchr/testify/require"
)

func TestFuncListExecute(t *testing.T) {
	var order []int
	var fl fn.FuncList
	fl.AddFunc(func() { order = append(order, 1) })
	fl.AddFunc(nil)
	fl.AddFunc(func() { order = append(order, 2) })
	fl.Execute()
	require.Equal(t, []int{2, 1}, order)

	fl.Execute()
	require.Equal(t, []int{2, 1}, order)
}

func TestFuncListToFunction(t *testing.T) {
	var calls int
	var fl fn.FuncList
	fl.AddFunc(func() { calls++ })
	f := fl.ToFunction()
	fl.Execute()
	require.Equal(t, 0, calls)
	f()
	require.Equal(t, 1, calls)
}
