package armature

// SetMode switches between rest and pose. Going from rest to pose initializes
// the pose from rest once per generation; leaving it only flips the flag.
func (a *Armature) SetMode(m Mode) error {
	if err := a.begin(); err != nil {
		return err
	}
	if m == ModePose && a.mode != ModePose {
		a.initializePoseIfNeeded()
	}
	changed := a.mode != m
	a.mode = m
	a.end()

	if changed {
		a.notify(ChangeMode, nil)
	}
	return nil
}

// InitializePoseIfNeeded resets the pose to rest when rest or structure
// changed since the pose was last initialized. Reports whether it did.
func (a *Armature) InitializePoseIfNeeded() (bool, error) {
	if err := a.begin(); err != nil {
		return false, err
	}
	done := a.initializePoseIfNeeded()
	a.end()
	if done {
		a.notify(ChangePose, nil)
	}
	return done, nil
}

func (a *Armature) initializePoseIfNeeded() bool {
	if a.poseGeneration == a.generation {
		return false
	}
	a.resetPoseToRest()
	return true
}

// ResetPoseToRest copies rest into pose for every bone, roots first.
func (a *Armature) ResetPoseToRest() error {
	if err := a.begin(); err != nil {
		return err
	}
	a.resetPoseToRest()
	a.end()
	a.notify(ChangePose, nil)
	return nil
}

func (a *Armature) resetPoseToRest() {
	for _, id := range a.Order() {
		r := a.bones[id]
		r.bone.ResetPoseToRest()
		r.bone.SetWorldToParentPoseTransform(a.parentTransform(r.parent, ModePose))
	}
	a.poseGeneration = a.generation
}

// touchRest marks a rest or structural edit. In pose mode every edit already
// keeps the pose of the touched subtree consistent, so the pose stays current.
func (a *Armature) touchRest() {
	a.generation++
	if a.mode == ModePose {
		a.poseGeneration = a.generation
	}
}
