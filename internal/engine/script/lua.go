package script

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/kode4food/stepflow/internal/util"
	"github.com/kode4food/stepflow/pkg/api"
)

type (
	// LuaEnv runs sandboxed Lua scripts. Compiled chunks are cached by
	// source hash. Every execution gets its own interpreter state
	LuaEnv struct {
		cache *util.LRUCache[*CompiledLua]
	}

	// CompiledLua is a precompiled Lua chunk
	CompiledLua struct {
		bytecode []byte
	}
)

const (
	luaCacheSize        = 1024
	luaHookInterval     = 1000
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaGlobalTableName  = "_G"
	luaPrelude          = "local context, config = ..."
	luaSeparator        = "\n"
	luaChunkName        = "step"
	luaResultKey        = "result"
)

var (
	ErrLuaLoad      = errors.New("lua load error")
	ErrLuaExecution = errors.New("lua execution error")
	ErrEmptyScript  = errors.New("script is empty")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewLuaEnv creates a Lua execution environment
func NewLuaEnv() *LuaEnv {
	return &LuaEnv{
		cache: util.NewLRUCache[*CompiledLua](luaCacheSize),
	}
}

// Compile returns the compiled form of a script, reusing a cached chunk
// when the same source has been seen before
func (e *LuaEnv) Compile(src string) (*CompiledLua, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrEmptyScript
	}
	return e.cache.Get(hashScript(src), func() (*CompiledLua, error) {
		return e.compile(src)
	})
}

// Validate reports whether a script compiles
func (e *LuaEnv) Validate(src string) error {
	_, err := e.Compile(src)
	return err
}

// Execute compiles and runs a script. The script sees the run's
// accumulated context and the step's configuration as the locals
// `context` and `config`. A returned table becomes the step's outputs;
// any other value is placed under the "result" key. The script is aborted
// once ctx is done
func (e *LuaEnv) Execute(
	ctx context.Context, src string, in api.Context, cfg api.Args,
) (api.Args, error) {
	proc, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	L := lua.NewState()
	e.setupSandbox(L)
	err = L.Load(bytes.NewReader(proc.bytecode), luaChunkName, "b")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	pushContext(L, in)
	pushArgs(L, cfg)

	watchContext(ctx, L)
	if err := L.ProtectedCall(2, 1, 0); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrLuaExecution, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	var result api.Args
	if L.IsTable(-1) {
		result = luaTableToMap(L, -1)
	} else {
		result = api.Args{luaResultKey: luaToGo(L, -1)}
	}
	L.Pop(1)
	return result, nil
}

func (e *LuaEnv) compile(src string) (*CompiledLua, error) {
	L := lua.NewState()

	e.setupSandbox(L)

	wrapped := strings.Join([]string{luaPrelude, src}, luaSeparator)
	if err := lua.LoadString(L, wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	return &CompiledLua{bytecode: buf.Bytes()}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

// watchContext raises a Lua error from inside the running chunk once ctx
// is done. The state must not be reused afterward
func watchContext(ctx context.Context, L *lua.State) {
	if ctx.Done() == nil {
		return
	}
	lua.SetDebugHook(L, func(L *lua.State, _ lua.Debug) {
		if err := ctx.Err(); err != nil {
			L.PushString(err.Error())
			L.Error()
		}
	}, lua.MaskCount, luaHookInterval)
}

func hashScript(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

func pushContext(L *lua.State, ctx api.Context) {
	L.CreateTable(0, len(ctx))
	for id, out := range ctx {
		L.PushString(string(id))
		pushArgs(L, out)
		L.SetTable(luaMapTableIndex)
	}
}

func pushArgs(L *lua.State, args api.Args) {
	L.CreateTable(0, len(args))
	for k, val := range args {
		L.PushString(string(k))
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case api.Args:
		pushArgs(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToMap(L *lua.State, index int) api.Args {
	result := api.Args{}

	L.PushNil()
	for L.Next(index - 1) {
		if L.TypeOf(-2) == lua.TypeString {
			key, _ := L.ToString(-2)
			result[api.Name(key)] = luaToGo(L, -1)
		}
		L.Pop(1)
	}

	return result
}

func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if L.TypeOf(-2) != lua.TypeNumber {
			isArray = false
			L.Pop(2)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return convertLuaArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		if L.TypeOf(-2) != lua.TypeString {
			key := fmt.Sprintf("%v", luaToGo(L, -2))
			result[key] = luaToGo(L, -1)
			L.Pop(1)
			continue
		}
		key, _ := L.ToString(-2)
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}

	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
