package manifest

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// script is one task's compiled Lua chunk. It owns its LState; a task never
// runs concurrently with itself, so the state is only used by one goroutine
// at a time.
type script struct {
	task   string
	L      *lua.LState
	fn     *lua.LFunction
	world  *Blackboard
	reads  map[string]bool
	writes map[string]bool
}

func newScript(def TaskDef, world *Blackboard) (*script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	s := &script{
		task:   def.Name,
		L:      L,
		world:  world,
		reads:  make(map[string]bool, len(def.Reads)),
		writes: make(map[string]bool, len(def.Writes)),
	}
	for _, r := range def.Reads {
		s.reads[r] = true
	}
	for _, w := range def.Writes {
		s.writes[w] = true
	}
	L.SetGlobal("world", s.worldTable())

	fn, err := L.LoadString(def.Script)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("task %q: compile script: %w", def.Name, err)
	}
	s.fn = fn
	return s, nil
}

// openSafeLibraries opens base, table, string and math only, then drops the
// base functions that load code from disk or strings.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (s *script) worldTable() *lua.LTable {
	t := s.L.NewTable()
	s.L.SetFuncs(t, map[string]lua.LGFunction{
		"get":   s.luaGet,
		"set":   s.luaSet,
		"frame": s.luaFrame,
	})
	return t
}

func (s *script) luaGet(L *lua.LState) int {
	name := L.CheckString(1)
	if !s.reads[name] && !s.writes[name] {
		L.RaiseError("task %q: read of undeclared resource %q", s.task, name)
		return 0
	}
	v, _ := s.world.Get(name)
	L.Push(toLua(v))
	return 1
}

func (s *script) luaSet(L *lua.LState) int {
	name := L.CheckString(1)
	if !s.writes[name] {
		L.RaiseError("task %q: write of undeclared resource %q", s.task, name)
		return 0
	}
	v, err := fromLua(L.Get(2))
	if err != nil {
		L.RaiseError("task %q: set %q: %v", s.task, name, err)
		return 0
	}
	if err := s.world.Set(name, v); err != nil {
		L.RaiseError("task %q: %v", s.task, err)
	}
	return 0
}

func (s *script) luaFrame(L *lua.LState) int {
	L.Push(lua.LNumber(s.world.Frame()))
	return 1
}

// RunE runs the chunk once. Lua errors, including access violations, come
// back as errors.
func (s *script) RunE(_ *Blackboard) error {
	return s.L.CallByParam(lua.P{Fn: s.fn, NRet: 0, Protect: true})
}

func (s *script) close() {
	s.L.Close()
}

func toLua(v any) lua.LValue {
	switch x := v.(type) {
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LNil
	}
}

func fromLua(v lua.LValue) (any, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		return float64(x), nil
	case lua.LString:
		return string(x), nil
	default:
		return nil, fmt.Errorf("unsupported Lua type %s", v.Type())
	}
}
