package core

import "containercore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Container          = domain.Container
	Relation           = domain.Relation
	Instruction        = domain.Instruction
	InstructionAction  = domain.InstructionAction
	Batch              = domain.Batch
	BatchResult        = domain.BatchResult
	BatchError         = domain.BatchError
	ErrorKind          = domain.ErrorKind
	PlaceholderMapping = domain.PlaceholderMapping
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
)

const (
	EntityContainer = domain.EntityContainer
)

const (
	InstructionCreate   = domain.InstructionCreate
	InstructionAddChild = domain.InstructionAddChild
	InstructionModify   = domain.InstructionModify
	InstructionRelate   = domain.InstructionRelate
	InstructionDelete   = domain.InstructionDelete
)

const (
	KindDuplicatePlaceholder  = domain.KindDuplicatePlaceholder
	KindUnresolvedPlaceholder = domain.KindUnresolvedPlaceholder
	KindUnknownEntity         = domain.KindUnknownEntity
	KindDuplicateEntity       = domain.KindDuplicateEntity
	KindInvalidInstruction    = domain.KindInvalidInstruction
	KindPersistence           = domain.KindPersistence
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
