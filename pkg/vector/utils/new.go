package vectorutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/llmpagina/avamem/pkg/vector"
	"github.com/llmpagina/avamem/pkg/vector/qdrant"
	"github.com/llmpagina/avamem/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType     string
	Host             string
	Port             int
	Path             string
	CollectionPrefix string
	Logger           *zap.Logger
}

func NewVectorDriver(o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "qdrant":
		return qdrant.NewDriver(qdrant.Config{
			Host:             o.Host,
			Port:             o.Port,
			CollectionPrefix: o.CollectionPrefix,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath: o.Path,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
