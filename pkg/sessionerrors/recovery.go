package sessionerrors

// recoveryPlan returns the canned, ordered recovery steps for a failure
// type. Plans are copied on use so callers cannot mutate the templates.
func recoveryPlan(t Type) []RecoveryStep {
	var plan []RecoveryStep

	switch t {
	case TypeSessionExpired:
		plan = []RecoveryStep{
			{Action: ActionReAuthenticate, Description: "Log in to the platform again and re-capture the session", Priority: 1, Automated: false, EstimatedTime: "2 minutes"},
		}
	case TypeInvalidCredentials:
		plan = []RecoveryStep{
			{Action: ActionUpdateCredentials, Description: "Update the stored credentials for this platform", Priority: 1, Automated: false, EstimatedTime: "2 minutes"},
			{Action: ActionReAuthenticate, Description: "Log in to the platform again and re-capture the session", Priority: 2, Automated: false, EstimatedTime: "2 minutes"},
		}
	case TypeNetworkError:
		plan = []RecoveryStep{
			{Action: ActionCheckNetwork, Description: "Check your network connection", Priority: 1, Automated: false, EstimatedTime: "1 minute"},
			{Action: ActionRetry, Description: "Retry the operation", Priority: 2, Automated: true, EstimatedTime: "a few seconds"},
		}
	case TypeAPIRateLimited:
		plan = []RecoveryStep{
			{Action: ActionWaitAndRetry, Description: "Wait a minute before retrying; the platform is rate limiting requests", Priority: 1, Automated: true, EstimatedTime: "1 minute"},
		}
	case TypeDataFormatError:
		plan = []RecoveryStep{
			{Action: ActionRetry, Description: "Retry the operation", Priority: 1, Automated: true, EstimatedTime: "a few seconds"},
			{Action: ActionContactSupport, Description: "Contact support if the data error persists", Priority: 2, Automated: false, EstimatedTime: "1 day"},
		}
	case TypePlatformUnavailable:
		plan = []RecoveryStep{
			{Action: ActionWaitAndRetry, Description: "The platform appears to be down; retry shortly", Priority: 1, Automated: true, EstimatedTime: "5 minutes"},
		}
	case TypePermissionDenied:
		plan = []RecoveryStep{
			{Action: ActionUpdateCredentials, Description: "Your account lacks permission for this operation; check your plan or credentials", Priority: 1, Automated: false, EstimatedTime: "5 minutes"},
			{Action: ActionContactSupport, Description: "Contact support if you believe access should be allowed", Priority: 2, Automated: false, EstimatedTime: "1 day"},
		}
	default: // TypeOperationFailed, TypeUnknown
		plan = []RecoveryStep{
			{Action: ActionRetry, Description: "Retry the operation", Priority: 1, Automated: true, EstimatedTime: "a few seconds"},
			{Action: ActionClearCache, Description: "Clear cached session data and try again", Priority: 2, Automated: false, EstimatedTime: "1 minute"},
		}
	}

	steps := make([]RecoveryStep, len(plan))
	copy(steps, plan)
	return steps
}

// userMessage returns the human-readable message for a failure type.
func userMessage(t Type) string {
	switch t {
	case TypeSessionExpired:
		return "Your session has expired. Please log in again."
	case TypeInvalidCredentials:
		return "The stored credentials were rejected. Please update them."
	case TypeNetworkError:
		return "A network problem interrupted the request. Check your connection and try again."
	case TypeAPIRateLimited:
		return "The platform is limiting requests. Please wait a moment and try again."
	case TypeDataFormatError:
		return "The platform returned data in an unexpected format."
	case TypePlatformUnavailable:
		return "The platform is temporarily unavailable. Please try again later."
	case TypePermissionDenied:
		return "You don't have permission to perform this operation."
	case TypeOperationFailed:
		return "The operation failed. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
