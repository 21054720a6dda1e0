package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("csvItemWriter", func(cfg *config.Config, props map[string]string) (any, error) {
		return props["path"], nil
	})
	r.Register("broken", func(cfg *config.Config, props map[string]string) (any, error) {
		return nil, exception.NewBatchErrorf("broken", exception.KindIO, "cannot open")
	})
	r.Register("plain", func(cfg *config.Config, props map[string]string) (any, error) {
		assert.NotNil(t, props, "properties は nil にならない")
		return nil, errors.New("plain failure")
	})

	assert.Equal(t, []string{"broken", "csvItemWriter", "plain"}, r.Refs())

	c, err := r.Build("csvItemWriter", config.NewConfig(), map[string]string{"path": "out.csv"})
	require.NoError(t, err)
	assert.Equal(t, "out.csv", c)

	_, err = r.Build("missing", config.NewConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))

	_, err = r.Build("broken", config.NewConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, exception.KindIO, exception.KindOf(err))

	_, err = r.Build("plain", config.NewConfig(), nil)
	require.Error(t, err)
	assert.Equal(t, exception.KindUnknown, exception.KindOf(err))
}
