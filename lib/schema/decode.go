package schema

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode validates tree against shape and decodes it into a T using the
// `json` struct tags of T.
func Decode[T any](tree any, shape *Shape) (T, error) {
	var out T
	err := Validate(tree, shape)
	if err != nil {
		return out, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "json",
	})
	if err != nil {
		return out, fmt.Errorf("failed to create decoder: %w", err)
	}
	err = decoder.Decode(tree)
	if err != nil {
		return out, fmt.Errorf("failed to decode %T: %w", out, err)
	}
	return out, nil
}
