// Package catalog loads tool bundles from a directory tree.
//
// Each bundle is a directory holding a manifest (bundle.yaml, bundle.yml,
// bundle.toml or bundle.json) and optional content files markup.html,
// style.css and script.js. Content files override the matching manifest
// fields. Manifests are checked against a schema covering metadata only;
// content is opaque text.
//
//	tools/
//	  overlay/
//	    bundle.yaml
//	    markup.html
//	    script.js
//	  banner/
//	    bundle.toml
package catalog
