//go:build !fitz

package wrapper

// NewRasterizer reports that no rasterizer was compiled in
func NewRasterizer() (Rasterizer, error) {
	return nil, ErrRasterizerUnavailable
}
