package models

import "github.com/nvnieuwk/ampclust/errs"

// Command line values keyed by user facing name (UserEps, UserMinReads, ...)
type Overrides map[string]any

// Resolve merges the parameters of a model. Later sources win:
//
//	built-in defaults < params file < command line
//
// Params file keys are native names and are taken as given. Command line
// values are renamed to native names and only take part when they are
// truthy, so a command line value of 0 or none never overrides anything.
// Use the params file to set a parameter to 0 or null.
func Resolve(name string, cli Overrides, file map[string]any) (Params, error) {
	spec, err := Lookup(name)
	if err != nil {
		return nil, err
	}

	params := spec.Defaults.clone()
	for key, value := range file {
		params[key] = value
	}
	for user, native := range spec.Rename {
		if value, ok := cli[user]; ok && truthy(value) {
			params[native] = value
		}
	}

	if spec.Validate != nil {
		if err := spec.Validate(params); err != nil {
			if _, ok := errs.As(err); ok {
				return nil, err
			}
			return nil, errs.Wrap(errs.Config, err, "invalid parameters for %s", name)
		}
	}
	return params, nil
}
