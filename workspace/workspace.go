// Package workspace snapshots an environment to disk and restores it. The
// wire format is msgpack over a small DTO layer closed under the five value
// kinds, so relation-valued attributes nest. Writes are atomic: a snapshot
// is either fully replaced or untouched.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rlch/relic/rel"
)

// snapshotVersion guards against reading snapshots written by an
// incompatible layout.
const snapshotVersion = 1

// ErrVersion is returned when a snapshot's version does not match.
var ErrVersion = errors.New("workspace: incompatible snapshot version")

type valueDTO struct {
	Kind int8    `msgpack:"k"`
	Int  int64   `msgpack:"i,omitempty"`
	Num  string  `msgpack:"n,omitempty"`
	Bool bool    `msgpack:"b,omitempty"`
	Str  string  `msgpack:"s,omitempty"`
	Rel  *relDTO `msgpack:"r,omitempty"`
}

type relDTO struct {
	Schema []string              `msgpack:"schema"`
	Tuples []map[string]valueDTO `msgpack:"tuples"`
}

type snapshotDTO struct {
	Version   int                `msgpack:"version"`
	Relations map[string]*relDTO `msgpack:"relations"`
}

// Save writes env to path atomically.
func Save(env *rel.Env, path string) error {
	snap := snapshotDTO{Version: snapshotVersion, Relations: map[string]*relDTO{}}

	for _, name := range env.Names() {
		r, _ := env.Get(name)
		snap.Relations[name] = encodeRelation(r)
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encoding workspace: %w", err)
	}

	if err := renameio.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("writing workspace: %w", err)
	}

	return nil
}

// Load reads a snapshot and returns its environment.
func Load(path string) (*rel.Env, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var snap snapshotDTO
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding workspace: %w", err)
	}

	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, snap.Version)
	}

	env := rel.NewEnv()

	for name, dto := range snap.Relations {
		r, err := decodeRelation(dto)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", name, err)
		}

		env.Set(name, r)
	}

	return env, nil
}

func encodeRelation(r *rel.Relation) *relDTO {
	dto := &relDTO{Schema: r.Schema()}

	for _, t := range r.Tuples() {
		m := make(map[string]valueDTO, t.Len())

		for _, n := range t.Names() {
			v, _ := t.Get(n)
			m[n] = encodeValue(v)
		}

		dto.Tuples = append(dto.Tuples, m)
	}

	return dto
}

func encodeValue(v rel.Value) valueDTO {
	switch v.Kind() {
	case rel.KindInt:
		return valueDTO{Kind: int8(rel.KindInt), Int: v.AsInt()}
	case rel.KindDecimal:
		return valueDTO{Kind: int8(rel.KindDecimal), Num: v.AsDecimal().String()}
	case rel.KindBool:
		return valueDTO{Kind: int8(rel.KindBool), Bool: v.AsBool()}
	case rel.KindString:
		return valueDTO{Kind: int8(rel.KindString), Str: v.AsString()}
	default:
		return valueDTO{Kind: int8(rel.KindRelation), Rel: encodeRelation(v.AsRelation())}
	}
}

func decodeRelation(dto *relDTO) (*rel.Relation, error) {
	b := rel.NewBuilder(dto.Schema)

	for _, m := range dto.Tuples {
		attrs := make(map[string]rel.Value, len(m))

		for n, vd := range m {
			v, err := decodeValue(vd)
			if err != nil {
				return nil, err
			}

			attrs[n] = v
		}

		if err := b.Add(rel.NewTuple(attrs)); err != nil {
			return nil, err
		}
	}

	return b.Relation(), nil
}

func decodeValue(dto valueDTO) (rel.Value, error) {
	switch rel.Kind(dto.Kind) {
	case rel.KindInt:
		return rel.Int(dto.Int), nil
	case rel.KindDecimal:
		d, err := decimal.NewFromString(dto.Num)
		if err != nil {
			return rel.Value{}, fmt.Errorf("invalid decimal %q", dto.Num)
		}

		return rel.Dec(d), nil
	case rel.KindBool:
		return rel.Bool(dto.Bool), nil
	case rel.KindString:
		return rel.String(dto.Str), nil
	case rel.KindRelation:
		if dto.Rel == nil {
			return rel.Value{}, errors.New("relation value without payload")
		}

		r, err := decodeRelation(dto.Rel)
		if err != nil {
			return rel.Value{}, err
		}

		return rel.Rel(r), nil
	default:
		return rel.Value{}, fmt.Errorf("unknown value kind %d", dto.Kind)
	}
}
