// Package assets resolves student photos for rendered documents.
//
// Photos are looked up by the identity's photo URL first, then as
// <photo_dir>/<REGN_NO>.{png,jpg,jpeg}. Whatever is found is normalised with
// disintegration/imaging into the configured photo box. Any failure along the
// way is logged and reported as absent so the renderer falls back to a
// placeholder.
package assets
