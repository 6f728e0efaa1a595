package constant

// User-facing messages sent through the messaging channel. The %s in
// MsgInstructionReceived is the instruction key, in
// MsgUnsupportedInstruction the "、"-joined instruction list, in
// MsgAnalysisFailed the failure reason and in MsgSchemaMissingColumn the
// missing column name. The %d in MsgFileReceived is the file count and in
// MsgChartBatchReady the image count.
const (
	MsgInstructionReceived    = "已收到指令: %s\n请上传两个需要对比的文件。"
	MsgUnsupportedInstruction = "暂不支持该指令。当前支持的指令：%s"
	MsgSendInstructionFirst   = "请先发送分析指令，再上传文件。"
	MsgFileReceived           = "已收到文件 %d/2，请继续上传第二个文件。"
	MsgAnalysisStarted        = "已收到两份文件，开始分析处理，请稍候…"
	MsgProcessingWait         = "上一次分析仍在进行中，请稍候…"
	MsgAnalysisFailed         = "分析失败: %s"
	MsgNothingToCompare       = "两份文件没有可对比的数据，请确认文件内容。"
	MsgSchemaMissingColumn    = "文件缺少必需列【%s】，请检查CSV表头。"
	MsgChartBatchReady        = "分析完成，共生成%d张分组图片，即将发送…"
	MsgChartEmpty             = "未生成有效图表，请确认CSV包含数据。"
	MsgCompareSubmitted       = "比对任务已提交，稍后留意消息推送。"
	MsgDispatchFailed         = "任务调度失败，请稍后重试。"
)
