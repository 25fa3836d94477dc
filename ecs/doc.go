// Package ecs bridges grove tooling into a [Donburi] world.
//
// [NewDonburiChannel] carries inspector messages as typed donburi events, so
// an ECS-based devtools panel can consume them from its own systems:
//
//	ch := ecs.NewDonburiChannel(world)
//	insp := inspector.New(ch, inspector.Config{})
//	// each frame
//	ch.Process()
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
