// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 memory 提供情感加权的情景记忆。

# 概述

本包解决"哪些经历值得记住、如何找回"的问题：每条经历以其情感向量
的指纹为键保存，只有情感强度达到阈值的经历才会被接纳；召回时按词元
重叠度与时间衰减打分，命中的记忆被标记为已访问，并以单行压缩形式
注入到上下文中。

# 核心类型

  - [Fingerprinter]：将情感向量或文本映射为固定长度的十六进制指纹，
    相同输入始终得到相同指纹
  - [EpisodicStore]：有界的进程内情景记忆，按最近访问时间淘汰
  - [StoreRequest]：一次待存储的经历
  - [MemoryStats]：记忆统计（数量、平均强度、按结果/领域分布等）

# 指纹格式

规范串为 "v:…,a:…,d:…,c:…,su:…,fe:…,jo:…,an:…,sa:…,di:…,t:<UTC 毫秒>"。
六个离散情绪字段插在 c 与 t 之间，任一字段变化都会改变指纹；
因此与只含 "v,a,d,c,t" 五个字段的旧格式不兼容：同一情感向量在两种
格式下得到不同指纹，旧格式导出的指纹不能用于本包的查找或效果反馈。

# 打分规则

  - [Intensity]：情感强度，核心维度以中性点为基准，离散情绪以 0 为基准，
    除以 √6 后截断到 [0,1]
  - [OverlapScore]：查询词命中记忆上下文计 1 分，命中策略上下文再计 2 分，
    按较长一方的词数归一化
  - [DecayWeight]：memoryDecay 的"距上次访问天数"次幂
  - [CompressedForm]：#mem: {上下文}-{结果} → {描述}

# 并发

[EpisodicStore] 的全部操作在同一把互斥锁下执行，召回的"打分-标记-排序"
对其它调用者是原子的。运行时参数（阈值、容量、衰减）每次调用时从
config.PipelineHolder 读取快照。
*/
package memory
