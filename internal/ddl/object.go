package ddl

import (
	"encoding/json"
	"sort"
	"strings"
)

// Object is a schema object named by a DDL statement. The zero value is not
// meaningful; build one with NewObject.
type Object struct {
	typ  string
	name string
}

// NewObject returns an Object with its type and name upper-cased, so two
// objects compare equal when they differ only by case.
func NewObject(objectType, name string) Object {
	return Object{typ: strings.ToUpper(objectType), name: strings.ToUpper(name)}
}

// Type returns the upper-cased object type.
func (o Object) Type() string { return o.typ }

// Name returns the upper-cased object name.
func (o Object) Name() string { return o.name }

func (o Object) String() string { return o.typ + " " + o.name }

type objectJSON struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name" yaml:"name"`
}

// MarshalJSON encodes the object as {"type": ..., "name": ...}.
func (o Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(objectJSON{Type: o.typ, Name: o.name})
}

// UnmarshalJSON decodes and normalizes an object.
func (o *Object) UnmarshalJSON(data []byte) error {
	var v objectJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = NewObject(v.Type, v.Name)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (o Object) MarshalYAML() (interface{}, error) {
	return objectJSON{Type: o.typ, Name: o.name}, nil
}

// Action is a DDL verb applied to an object.
type Action struct {
	action string
	object Object
}

// NewAction returns an Action with the verb upper-cased.
func NewAction(action string, object Object) Action {
	return Action{action: strings.ToUpper(action), object: object}
}

// Action returns the upper-cased verb, such as CREATE or CREATE OR REPLACE.
func (a Action) Action() string { return a.action }

// Object returns the object acted on.
func (a Action) Object() Object { return a.object }

func (a Action) String() string { return a.action + " " + a.object.String() }

type actionJSON struct {
	Action string `json:"action" yaml:"action"`
	Type   string `json:"type" yaml:"type"`
	Name   string `json:"name" yaml:"name"`
}

// MarshalJSON encodes the action as {"action": ..., "type": ..., "name": ...}.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(actionJSON{Action: a.action, Type: a.object.typ, Name: a.object.name})
}

// UnmarshalJSON decodes and normalizes an action.
func (a *Action) UnmarshalJSON(data []byte) error {
	var v actionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = NewAction(v.Action, NewObject(v.Type, v.Name))
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (a Action) MarshalYAML() (interface{}, error) {
	return actionJSON{Action: a.action, Type: a.object.typ, Name: a.object.name}, nil
}

// ObjectSet is a deduplicated set of objects.
type ObjectSet map[Object]struct{}

// NewObjectSet returns a set holding objs.
func NewObjectSet(objs ...Object) ObjectSet {
	s := make(ObjectSet, len(objs))
	for _, o := range objs {
		s.Add(o)
	}
	return s
}

// ObjectsOf collapses actions into the set of objects they touch.
func ObjectsOf(actions []Action) ObjectSet {
	s := make(ObjectSet, len(actions))
	for _, a := range actions {
		s.Add(a.object)
	}
	return s
}

// Add inserts o.
func (s ObjectSet) Add(o Object) { s[o] = struct{}{} }

// Contains reports whether o is in the set.
func (s ObjectSet) Contains(o Object) bool {
	_, ok := s[o]
	return ok
}

// Len returns the number of objects.
func (s ObjectSet) Len() int { return len(s) }

// Sorted returns the objects ordered by type, then name.
func (s ObjectSet) Sorted() []Object {
	out := make([]Object, 0, len(s))
	for o := range s {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].typ != out[j].typ {
			return out[i].typ < out[j].typ
		}
		return out[i].name < out[j].name
	})
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s ObjectSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MarshalYAML implements yaml.Marshaler.
func (s ObjectSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}
