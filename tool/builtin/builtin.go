package builtin

import "github.com/smarter-sh/smarter-sub001/tool"

// Options configure the built-in set.
type Options struct {
	Weather []func(o *WeatherOptions)
}

// Tools returns every built-in function.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return []tool.Tool{NewWeather(opts.Weather...)}
}

// Catalog returns a catalog preloaded with the built-ins. Ad-hoc functions
// can be registered on it afterwards.
func Catalog(optFns ...func(o *Options)) (*tool.Catalog, error) {
	return tool.NewCatalog(Tools(optFns...)...)
}
