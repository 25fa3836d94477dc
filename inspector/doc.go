// Package inspector reports live grove trees to a devtools panel.
//
// An [Inspector] attaches to a [grove.App] and, while enabled, runs render
// hooks around every draw. The [Outliner] hooks give each observed node a
// stable numeric id, serialize the tree with per-node collapse state, and
// emit TREE whenever the structure changes. Selection, search and the
// highlight overlay are driven through the outliner as well.
//
// Messages travel over a [Channel]. [Bus] is the in-memory implementation;
// the ecs package provides one backed by a donburi world.
//
//	bus := inspector.NewBus()
//	insp := inspector.New(bus, inspector.Config{})
//	insp.Attach(app)
//	bus.Subscribe(inspector.CmdTree, func(m inspector.Message) { ... })
//	insp.Enable()
package inspector
