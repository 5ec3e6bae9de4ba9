package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// resolver resolves one root field. args holds the coerced field arguments.
type resolver func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// executableSchema runs operations against root resolvers. Fields below the
// root are read from the resolved Go values: a struct field whose JSON name
// matches the GraphQL field, or an exported method of the same name.
type executableSchema struct {
	schema    *ast.Schema
	queries   map[string]resolver
	mutations map[string]resolver
}

var _ graphql.ExecutableSchema = (*executableSchema)(nil)

func (e *executableSchema) Schema() *ast.Schema { return e.schema }

func (e *executableSchema) Complexity(string, string, int, map[string]interface{}) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	rc := graphql.GetOperationContext(ctx)
	done := false
	return func(ctx context.Context) *graphql.Response {
		if done {
			return nil
		}
		done = true

		var (
			root      *ast.Definition
			resolvers map[string]resolver
		)
		switch rc.Operation.Operation {
		case ast.Query:
			root, resolvers = e.schema.Query, e.queries
		case ast.Mutation:
			root, resolvers = e.schema.Mutation, e.mutations
		default:
			return graphql.ErrorResponse(ctx, "unsupported operation %s", rc.Operation.Operation)
		}

		ex := &executor{rc: rc, schema: e.schema}
		data, err := json.Marshal(ex.root(ctx, root, resolvers))
		if err != nil {
			return graphql.ErrorResponse(ctx, "failed to encode response: %s", err)
		}
		return &graphql.Response{Data: data, Errors: ex.errs}
	}
}

type executor struct {
	rc     *graphql.OperationContext
	schema *ast.Schema
	errs   gqlerror.List
}

func (ex *executor) fail(path ast.Path, err error) {
	ex.errs = append(ex.errs, &gqlerror.Error{Message: err.Error(), Path: path})
}

func at(path ast.Path, el ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, el)
}

// root runs the root fields in document order. It returns nil when a
// non-null root field resolved to null.
func (ex *executor) root(ctx context.Context, def *ast.Definition, resolvers map[string]resolver) interface{} {
	out := object{}
	for _, f := range graphql.CollectFields(ex.rc, ex.rc.Operation.SelectionSet, []string{def.Name}) {
		path := ast.Path{ast.PathName(f.Alias)}
		if f.Name == "__typename" {
			out = append(out, entry{f.Alias, def.Name})
			continue
		}
		if f.Definition == nil {
			ex.fail(path, fmt.Errorf("unknown field %s.%s", def.Name, f.Name))
			out = append(out, entry{f.Alias, nil})
			continue
		}
		args := f.ArgumentMap(ex.rc.Variables)

		var (
			v   interface{}
			err error
		)
		switch f.Name {
		case "__schema":
			if ex.rc.DisableIntrospection {
				err = fmt.Errorf("introspection is disabled")
				break
			}
			v = introspection.WrapSchema(ex.schema)
		case "__type":
			name, _ := args["name"].(string)
			if t := ex.schema.Types[name]; t != nil && !ex.rc.DisableIntrospection {
				v = introspection.WrapTypeFromDef(ex.schema, t)
			}
		default:
			r, ok := resolvers[f.Name]
			if !ok {
				err = fmt.Errorf("no resolver for %s.%s", def.Name, f.Name)
				break
			}
			v, err = r(ctx, args)
		}
		if err != nil {
			ex.fail(path, err)
			if f.Definition.Type.NonNull {
				return nil
			}
			out = append(out, entry{f.Alias, nil})
			continue
		}
		val, ok := ex.value(ctx, f.Definition.Type, f.Selections, reflect.ValueOf(v), path)
		if !ok {
			return nil
		}
		out = append(out, entry{f.Alias, val})
	}
	return out
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// null completes a null value of typ. ok is false when typ is non-null and
// the null has to replace the nearest nullable parent instead.
func (ex *executor) null(typ *ast.Type, path ast.Path, reported bool) (interface{}, bool) {
	if !typ.NonNull {
		return nil, true
	}
	if !reported {
		ex.fail(path, fmt.Errorf("must not be null"))
	}
	return nil, false
}

// value completes v as typ. ok is false when a null reached a non-null
// position, in which case the caller nulls out its own value.
func (ex *executor) value(ctx context.Context, typ *ast.Type, sel ast.SelectionSet, v reflect.Value, path ast.Path) (interface{}, bool) {
	v = indirect(v)
	if !v.IsValid() {
		return ex.null(typ, path, false)
	}
	if typ.Elem != nil {
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			ex.fail(path, fmt.Errorf("expected a list, got %s", v.Type()))
			return ex.null(typ, path, true)
		}
		list := make([]interface{}, v.Len())
		for i := range list {
			item, ok := ex.value(ctx, typ.Elem, sel, v.Index(i), at(path, ast.PathIndex(i)))
			if !ok {
				return ex.null(typ, path, true)
			}
			list[i] = item
		}
		return list, true
	}

	def := ex.schema.Types[typ.NamedType]
	switch def.Kind {
	case ast.Scalar, ast.Enum:
		return leaf(v), true
	case ast.Object:
		obj, ok := ex.object(ctx, def, sel, v, path)
		if !ok {
			return ex.null(typ, path, true)
		}
		return obj, true
	}
	ex.fail(path, fmt.Errorf("unsupported type kind %s", def.Kind))
	return ex.null(typ, path, true)
}

func (ex *executor) object(ctx context.Context, def *ast.Definition, sel ast.SelectionSet, v reflect.Value, path ast.Path) (object, bool) {
	out := object{}
	for _, f := range graphql.CollectFields(ex.rc, sel, []string{def.Name}) {
		if f.Name == "__typename" {
			out = append(out, entry{f.Alias, def.Name})
			continue
		}
		fpath := at(path, ast.PathName(f.Alias))
		if f.Definition == nil {
			ex.fail(fpath, fmt.Errorf("unknown field %s.%s", def.Name, f.Name))
			out = append(out, entry{f.Alias, nil})
			continue
		}
		var (
			val interface{}
			ok  bool
		)
		fv, err := lookup(v, f.Name, f.ArgumentMap(ex.rc.Variables))
		if err != nil {
			ex.fail(fpath, err)
			val, ok = ex.null(f.Definition.Type, fpath, true)
		} else {
			val, ok = ex.value(ctx, f.Definition.Type, f.Selections, fv, fpath)
		}
		if !ok {
			return nil, false
		}
		out = append(out, entry{f.Alias, val})
	}
	return out, true
}

func leaf(v reflect.Value) interface{} {
	if v.CanInterface() {
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(time.RFC3339)
		}
	}
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	if v.CanInterface() {
		return v.Interface()
	}
	return nil
}

var fieldCache sync.Map

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// fields maps the GraphQL names of t's exported fields, including promoted
// ones, to their index paths.
func fields(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	out := map[string][]int{}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = lowerFirst(f.Name)
		}
		out[name] = f.Index
	}
	fieldCache.Store(t, out)
	return out
}

// lookup reads field name of v. Methods may take one argument, filled from
// the single field argument when present.
func lookup(v reflect.Value, name string, args map[string]interface{}) (reflect.Value, error) {
	if v.Kind() == reflect.Struct {
		if idx, ok := fields(v.Type())[name]; ok {
			return v.FieldByIndexErr(idx)
		}
	}

	method := v.MethodByName(upperFirst(name))
	if !method.IsValid() && v.CanAddr() {
		method = v.Addr().MethodByName(upperFirst(name))
	}
	if !method.IsValid() {
		return reflect.Value{}, fmt.Errorf("cannot resolve field %s on %s", name, v.Type())
	}

	mt := method.Type()
	in := make([]reflect.Value, mt.NumIn())
	for i := range in {
		in[i] = reflect.Zero(mt.In(i))
	}
	if len(in) == 1 {
		for _, arg := range args {
			if av := reflect.ValueOf(arg); av.IsValid() && av.Type().ConvertibleTo(mt.In(0)) {
				in[0] = av.Convert(mt.In(0))
			}
		}
	}
	out := method.Call(in)
	if len(out) == 0 {
		return reflect.Value{}, fmt.Errorf("method %s returns nothing", name)
	}
	return out[0], nil
}

type entry struct {
	key   string
	value interface{}
}

// object is a JSON object that keeps the order of its fields.
type object []entry

func (o object) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
