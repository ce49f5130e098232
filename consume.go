package cabinet

import (
	"context"
	"strconv"
)

// ConsumerName is the name a parent's scoped consumer for target must carry.
func ConsumerName(target string) string { return ShortName(target) + "Consumer" }

// Consume builds target records from raw items on behalf of parent, honouring
// a fixed precedence:
//
//  1. a scoped consumer declared by parent's type (or a supertype) named
//     ConsumerName(target) whose Uses reference target, called once with
//     every item;
//  2. per item, an item that already is a target record is returned unchanged;
//  3. the target type's provider, called per remaining item;
//  4. default construction per remaining item.
//
// Once a consumer or provider is selected its error is returned as a
// construction failure; there is no fallback to default construction.
func Consume(ctx context.Context, target *RecordType, items []any, parent *Record) ([]*Record, error) {
	return consume(ctx, target, items, parent, "", true)
}

// Provide builds one record of target from raw, skipping scoped consumers.
// Consumers call it to delegate reshaped items back to the default rules.
func Provide(ctx context.Context, target *RecordType, raw any, parent *Record) (*Record, error) {
	return provide(ctx, target, raw, parent, "")
}

func consume(ctx context.Context, target *RecordType, items []any, parent *Record, path string, plural bool) ([]*Record, error) {
	if parent != nil {
		if c, ok := parent.typ.scopedConsumer(target); ok {
			logger().Debug().
				Str("parent", parent.typ.name).
				Str("target", target.name).
				Str("consumer", c.Name).
				Int("items", len(items)).
				Msg("using scoped consumer")
			recs, err := c.Build(ctx, items, parent)
			if err != nil {
				return nil, constructionFailure(path, target, err)
			}
			return recs, nil
		}
	}
	out := make([]*Record, 0, len(items))
	for i, item := range items {
		p := path
		if plural && p != "" {
			p += "/" + strconv.Itoa(i)
		}
		rec, err := provide(ctx, target, item, parent, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func provide(ctx context.Context, target *RecordType, raw any, parent *Record, path string) (*Record, error) {
	if rec, ok := raw.(*Record); ok && rec != nil && rec.typ.Is(target) {
		return rec, nil
	}
	if fn := target.providerFunc(); fn != nil {
		logger().Debug().Str("target", target.name).Str("path", path).Msg("using type provider")
		rec, err := fn(ctx, raw, parent)
		if err != nil {
			return nil, constructionFailure(path, target, err)
		}
		return rec, nil
	}
	return newRecord(target, asMap(raw), path)
}

// providerFunc returns the provider declared on t or its nearest supertype.
func (t *RecordType) providerFunc() ProviderFunc {
	for cur := t; cur != nil; cur = cur.parent {
		if cur.provider != nil {
			return cur.provider
		}
	}
	return nil
}

func constructionFailure(path string, target *RecordType, err error) error {
	return newIssue(CodeConstruction, path, target.name, err)
}

// pluralDeferred defers construction of every item of a record list.
func pluralDeferred(path string, target *RecordType, items []any, parent *Record) *Deferred {
	return newDeferred(path, Pluralize(target.name), parent.typ, func(ctx context.Context) (any, error) {
		recs, err := consume(ctx, target, items, parent, path, true)
		if err != nil {
			return nil, err
		}
		return recs, nil
	})
}

// singularDeferred defers construction of exactly one record.
func singularDeferred(path string, target *RecordType, raw any, parent *Record) *Deferred {
	return newDeferred(path, target.name, parent.typ, func(ctx context.Context) (any, error) {
		recs, err := consume(ctx, target, []any{raw}, parent, path, false)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 || recs[0] == nil {
			return nil, nil
		}
		return recs[0], nil
	})
}
