package sqlstore

import "github.com/goliatone/go-integrations/core"

var _ core.KVStore = (*Store)(nil)
