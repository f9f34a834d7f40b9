package git

// GitOps abstracts git operations so the discipline service and coordinator
// can be tested with mocks.
type GitOps interface {
	IsRepo(path string) bool
	Init(path string) error
	SetIdentity(path, name, email string) error
	HasChanges(path string) bool
	StageAll(path string) error
	Commit(path, message string) error
	CurrentBranch(path string) (string, error)
	BranchExists(path, name string) bool
	CreateBranch(path, name string) error
	CheckoutBranch(path, name string) error
	CreateTag(path, name, message string) error
	Log(path string, count int) ([]CommitInfo, error)
	HeadCommit(path string) (string, error)
	BranchCount(path string) int
	InstallHook(path, name, script string) error
}

// RealGit delegates to the package-level functions.
type RealGit struct{}

func (RealGit) IsRepo(path string) bool {
	return IsRepo(path)
}

func (RealGit) Init(path string) error {
	return Init(path)
}

func (RealGit) SetIdentity(path, name, email string) error {
	return SetIdentity(path, name, email)
}

func (RealGit) HasChanges(path string) bool {
	return HasChanges(path)
}

func (RealGit) StageAll(path string) error {
	return StageAll(path)
}

func (RealGit) Commit(path, message string) error {
	return Commit(path, message)
}

func (RealGit) CurrentBranch(path string) (string, error) {
	return CurrentBranch(path)
}

func (RealGit) BranchExists(path, name string) bool {
	return BranchExists(path, name)
}

func (RealGit) CreateBranch(path, name string) error {
	return CreateBranch(path, name)
}

func (RealGit) CheckoutBranch(path, name string) error {
	return CheckoutBranch(path, name)
}

func (RealGit) CreateTag(path, name, message string) error {
	return CreateTag(path, name, message)
}

func (RealGit) Log(path string, count int) ([]CommitInfo, error) {
	return Log(path, count)
}

func (RealGit) HeadCommit(path string) (string, error) {
	return HeadCommit(path)
}

func (RealGit) BranchCount(path string) int {
	return BranchCount(path)
}

func (RealGit) InstallHook(path, name, script string) error {
	return InstallHook(path, name, script)
}
