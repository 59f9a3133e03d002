package armature

type ChangeKind int

const (
	ChangeStructure ChangeKind = iota
	ChangeRest
	ChangePose
	ChangeMode
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStructure:
		return "structure"
	case ChangeRest:
		return "rest"
	case ChangePose:
		return "pose"
	case ChangeMode:
		return "mode"
	}
	return "unknown"
}

// ChangeEvent is delivered once the whole cascade of a mutation is done.
// Bones lists the bones the mutation was applied to, not every bone the
// cascade touched.
type ChangeEvent struct {
	Kind     ChangeKind
	Bones    []BoneID
	Mode     Mode
	Warnings []error
}

type ChangeHook func(a *Armature, ev ChangeEvent)

func (a *Armature) OnChange(h ChangeHook) {
	a.hooks = append(a.hooks, h)
}

func (a *Armature) notify(kind ChangeKind, warnings []error, bones ...BoneID) {
	ev := ChangeEvent{Kind: kind, Bones: bones, Mode: a.mode, Warnings: warnings}
	for _, h := range a.hooks {
		h(a, ev)
	}
}
