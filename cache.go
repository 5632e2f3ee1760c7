package formula

import (
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"
)

// snapshotJSON sorts map keys so equal rows always produce equal keys
var snapshotJSON = jsoniter.Config{
	SortMapKeys:            true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// resultCache keeps evaluated results keyed by formula and row snapshot
type resultCache struct {
	results     *lru.Cache[string, Value]
	expressions *lru.Cache[string, *FormulaExpression]
}

func newResultCache(resultSize, expressionSize int) (*resultCache, error) {
	if resultSize <= 0 {
		resultSize = 1
	}
	if expressionSize <= 0 {
		expressionSize = 1
	}
	results, err := lru.New[string, Value](resultSize)
	if err != nil {
		return nil, err
	}
	expressions, err := lru.New[string, *FormulaExpression](expressionSize)
	if err != nil {
		return nil, err
	}
	return &resultCache{
		results:     results,
		expressions: expressions,
	}, nil
}

// resultKey builds the cache key for one evaluation from the values the
// formula sees after ValueOf, not from the raw host values. returns
// ok=false when the snapshot cannot be encoded, in which case the result is
// not cached.
func resultKey(formula string, ctx *FormulaContext) (string, bool) {
	var row Row
	var vars map[string]any
	if ctx != nil {
		row = ctx.Row
		vars = ctx.Variables
	}

	rowJSON, err := snapshotJSON.Marshal(keySnapshot(row))
	if err != nil {
		return "", false
	}
	key := formula + "\x00" + string(rowJSON)

	if len(vars) > 0 {
		varsJSON, err := snapshotJSON.Marshal(keySnapshot(vars))
		if err != nil {
			return "", false
		}
		key += "\x00" + string(varsJSON)
	}
	return key, true
}

// keySnapshot maps each entry to its kind and an exact text form
func keySnapshot(m map[string]any) map[string]string {
	snap := make(map[string]string, len(m))
	for k, v := range m {
		snap[k] = keyText(ValueOf(v))
	}
	return snap
}

func keyText(v Value) string {
	switch v.kind {
	case KindNumber:
		return "n:" + strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return "s:" + v.str
	case KindBoolean:
		return "b:" + strconv.FormatBool(v.b)
	case KindDateTime:
		return "t:" + v.t.Format(time.RFC3339Nano) + " " + v.t.Location().String()
	case KindError:
		if v.err == nil {
			return "e:"
		}
		return fmt.Sprintf("e:%d:%s", v.err.Code, v.err.Message)
	}
	return "z"
}

func (c *resultCache) getResult(key string) (Value, bool) {
	return c.results.Get(key)
}

func (c *resultCache) putResult(key string, v Value) {
	c.results.Add(key, v)
}

func (c *resultCache) getExpression(formula string) (*FormulaExpression, bool) {
	return c.expressions.Get(normalizeKey(formula))
}

func (c *resultCache) putExpression(expr *FormulaExpression) {
	c.expressions.Add(normalizeKey(expr.Raw), expr)
}

func (c *resultCache) purgeResults() {
	c.results.Purge()
}

func (c *resultCache) purge() {
	c.results.Purge()
	c.expressions.Purge()
}

// CacheStats reports the number of entries held by each cache
type CacheStats struct {
	Results     int
	Expressions int
}

func (c *resultCache) stats() CacheStats {
	return CacheStats{
		Results:     c.results.Len(),
		Expressions: c.expressions.Len(),
	}
}
