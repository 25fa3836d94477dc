// Package grove is a declarative scene-graph framework for [Ebitengine].
//
// A scene is described as data: a tree of [Descriptor] values naming an
// element type, an optional id, plain values, references to other elements,
// controllers and children. A [Manager] materializes that tree into live
// elements, resolves the references between them, runs their lifecycle hooks
// and can serialize the live tree back into the same form.
//
// # Quick start
//
//	app := grove.NewApp(nil)
//	cfg, err := grove.LoadAppConfigFile(os.DirFS("."), "app.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Start(cfg, os.DirFS(".")); err != nil {
//		log.Fatal(err)
//	}
//	log.Fatal(grove.Run(app, cfg.RunConfig()))
//
// # Scene data
//
//	{
//	  "type": "container",
//	  "children": [
//	    {"type": "sprite", "id": "1", "values": {"source": "hero", "alpha": 0.5}},
//	    {"type": "meter", "id": "2", "properties": {"text": 3},
//	     "children": [{"type": "text", "id": "3"}]}
//	  ]
//	}
//
// Values are applied through the property codec ([SetValues]): a key naming
// a method invokes it, an object merges into the member, anything else is
// assigned. Properties are resolved after the whole tree is built: a number
// is the id of another element, a list of numbers a list of elements, and
// {"value": x} a literal.
//
// # Element types
//
// Types are registered on a [Registry] with a [Factory] and the data keys
// serialized for them. The built-ins are container, sprite, text, graphics,
// movie, button, meter and fps, plus the backdrop and tween controllers.
// Element values opt into lifecycle hooks by implementing [Ticker],
// [PostInitializer] and [Destroyer].
//
// # Services
//
// Factories pull collaborators from the service table by name: the
// [AssetLoader], the donburi-backed [EventBus] (via [Donburi]) and the
// [Tweener] (via [gween]). The inspector package observes a running tree for
// devtools.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
// [gween]: https://github.com/tanema/gween
package grove
